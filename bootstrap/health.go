package bootstrap

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status       string             `json:"status"`
	Service      string             `json:"service"`
	Registration registrationStatus `json:"registration"`
	Connectors   map[string]bool    `json:"connectors,omitempty"`
}

type registrationStatus struct {
	ID    string `json:"id,omitempty"`
	State string `json:"state"`
}

// health 存活检查，不需要认证。注册失败不影响存活状态，只在 registration 中体现。
func (a *App) health(c *gin.Context) {
	h := a.registrar.Handle()
	resp := healthResponse{
		Status:  "ok",
		Service: a.cfg.App.Name,
		Registration: registrationStatus{
			ID:    string(h.ID),
			State: h.State.String(),
		},
	}
	if conns := a.conns.all(); len(conns) > 0 {
		resp.Connectors = make(map[string]bool, len(conns))
		for _, conn := range conns {
			resp.Connectors[conn.Name()] = conn.IsHealthy()
		}
	}
	c.JSON(http.StatusOK, resp)
}
