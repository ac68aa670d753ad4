package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"knowra/src/core/agent"
	"knowra/src/core/rag"
)

// KnowledgeHandler exposes question answering and index management.
type KnowledgeHandler struct {
	agent     *agent.Agent
	index     rag.VectorIndex
	generator rag.Generator
}

func NewKnowledgeHandler(a *agent.Agent, index rag.VectorIndex, generator rag.Generator) *KnowledgeHandler {
	return &KnowledgeHandler{
		agent:     a,
		index:     index,
		generator: generator,
	}
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
	K        int    `json:"k"`
	// Sources are included unless the request says otherwise.
	IncludeSources *bool  `json:"include_sources"`
	User           string `json:"user"`
}

// Ask handles POST /api/v1/ask
func (h *KnowledgeHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.agent.Ask(c.Request.Context(), agent.Question{
		Text:           req.Question,
		K:              req.K,
		ExcludeSources: req.IncludeSources != nil && !*req.IncludeSources,
		Asker:          req.User,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, answer)
}

// History handles GET /api/v1/history
func (h *KnowledgeHandler) History(c *gin.Context) {
	turns := h.agent.History()
	c.JSON(http.StatusOK, gin.H{
		"turns": turns,
		"count": len(turns),
	})
}

// ClearHistory handles DELETE /api/v1/history
func (h *KnowledgeHandler) ClearHistory(c *gin.Context) {
	h.agent.ClearHistory()
	c.Status(http.StatusNoContent)
}

// Stats handles GET /api/v1/stats
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	stats, err := h.index.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chunk_count":     stats.Count,
		"index_name":      stats.Name,
		"model_reachable": h.generator.IsReachable(c.Request.Context()),
	})
}

// ClearIndex handles DELETE /api/v1/index
func (h *KnowledgeHandler) ClearIndex(c *gin.Context) {
	deleted, err := h.index.Clear(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// Health handles GET /healthz
func (h *KnowledgeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
