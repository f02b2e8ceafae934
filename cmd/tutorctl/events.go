package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/pkg/events"
	pktNats "ai-tutoring-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail domain events from the NATS stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.App.NatsURL == "" {
			return fmt.Errorf("NATS_URL is not set")
		}

		subject := pktNats.SubjectPrefix + ".>"
		if eventType, _ := cmd.Flags().GetString("type"); eventType != "" {
			subject = pktNats.Subject(eventType)
		}

		sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		color.Cyan("Listening on %s (Ctrl+C to stop)", subject)
		return sub.Subscribe(ctx, subject, "", func(_ context.Context, event events.Event) error {
			payload, _ := json.Marshal(event.Payload())
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
				event.Timestamp().Format("15:04:05"),
				eventColor(event.EventType()).Sprint(event.EventType()),
				payload)
			return nil
		})
	},
}

func init() {
	eventsCmd.Flags().StringP("type", "t", "", "Only show one event type, e.g. GENERATION_COMPLETED")
}

func eventColor(eventType string) *color.Color {
	switch eventType {
	case events.GenerationFailed, events.ExercisesRejected:
		return color.New(color.FgRed)
	case events.GenerationCompleted, events.ExercisesApproved:
		return color.New(color.FgGreen)
	}
	return color.New(color.FgYellow)
}
