package unitofwork

import (
	"context"

	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/internal/repository/memory"
)

// MemoryUnitOfWork serves the in-process repositories. Writes are applied
// immediately, so Begin/Commit/Rollback are no-ops.
type MemoryUnitOfWork struct {
	store *memory.Store
}

type memoryFactory struct {
	store *memory.Store
}

// NewMemoryRepositoryFactory is used when no database DSN is configured.
func NewMemoryRepositoryFactory(store *memory.Store) RepositoryFactory {
	return &memoryFactory{store: store}
}

func (f *memoryFactory) NewUnitOfWork(ctx context.Context) UnitOfWork {
	return &MemoryUnitOfWork{store: f.store}
}

func (u *MemoryUnitOfWork) Begin(ctx context.Context) error {
	return nil
}

func (u *MemoryUnitOfWork) Commit() error {
	return nil
}

func (u *MemoryUnitOfWork) Rollback() error {
	return nil
}

func (u *MemoryUnitOfWork) LearningSourceRepository() contract.LearningSourceRepository {
	return memory.NewLearningSourceRepository(u.store)
}

func (u *MemoryUnitOfWork) GenerationJobRepository() contract.GenerationJobRepository {
	return memory.NewGenerationJobRepository(u.store)
}

func (u *MemoryUnitOfWork) TutoringSessionRepository() contract.TutoringSessionRepository {
	return memory.NewTutoringSessionRepository(u.store)
}

func (u *MemoryUnitOfWork) DiagnosticReportRepository() contract.DiagnosticReportRepository {
	return memory.NewDiagnosticReportRepository(u.store)
}
