package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/cartrewards/service_layer/internal/httputil"
)

type healthResponse struct {
	Status   string   `json:"status"`
	Uptime   string   `json:"uptime"`
	RSSBytes uint64   `json:"rss_bytes,omitempty"`
	Services []string `json:"services,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
		Services: h.app.Services(),
	}
	if proc, err := process.NewProcessWithContext(r.Context(), int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfoWithContext(r.Context()); err == nil && mem != nil {
			resp.RSSBytes = mem.RSS
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
