package dto

type HealthResponse struct {
	Status      string   `json:"status"`
	Ready       bool     `json:"ready"`
	Missing     []string `json:"missing"`
	LLMProvider string   `json:"llm_provider"`
	VectorStore string   `json:"vector_store"`
}
