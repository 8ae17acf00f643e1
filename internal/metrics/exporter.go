// Package metrics serves the Prometheus exposition and the health endpoint.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/styxgzi/nervesx-bot/internal/logging"
	"github.com/styxgzi/nervesx-bot/internal/watchdog"
)

// StatusSource is implemented by *watchdog.Watchdog.
type StatusSource interface {
	Healthy() bool
	GetStatus() []watchdog.ComponentHealth
}

type Health struct {
	Status     string                     `json:"status"`
	Components []watchdog.ComponentHealth `json:"components"`
	Uptime     string                     `json:"uptime"`
	Goroutines int                        `json:"goroutines"`

	ProcessRSSBytes   uint64  `json:"process_rss_bytes,omitempty"`
	HostMemUsedPct    float64 `json:"host_mem_used_percent,omitempty"`
	HostUptimeSeconds uint64  `json:"host_uptime_seconds,omitempty"`
}

type MetricsExporter struct {
	listen  string
	status  StatusSource
	started time.Time
	metrics fasthttp.RequestHandler
	server  *fasthttp.Server
}

func NewMetricsExporter(listen string, status StatusSource) *MetricsExporter {
	me := &MetricsExporter{
		listen:  listen,
		status:  status,
		started: time.Now(),
		metrics: fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()),
	}
	me.server = &fasthttp.Server{
		Handler:      me.Handler,
		Name:         "nervesx",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return me
}

func (me *MetricsExporter) Handler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/metrics":
		me.metrics(ctx)
	case "/health":
		me.health(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

// Export builds the health document.
func (me *MetricsExporter) Export() Health {
	h := Health{
		Status:     "ok",
		Components: me.status.GetStatus(),
		Uptime:     time.Since(me.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}
	if !me.status.Healthy() {
		h.Status = "degraded"
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			h.ProcessRSSBytes = mi.RSS
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.HostMemUsedPct = vm.UsedPercent
	}
	if up, err := host.Uptime(); err == nil {
		h.HostUptimeSeconds = up
	}
	return h
}

func (me *MetricsExporter) health(ctx *fasthttp.RequestCtx) {
	h := me.Export()
	body, err := json.Marshal(h)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	if h.Status != "ok" {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	}
	ctx.SetBody(body)
}

// Start listens on the configured address and serves in the background.
func (me *MetricsExporter) Start() error {
	ln, err := net.Listen("tcp", me.listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", me.listen, err)
	}
	go func() {
		if err := me.server.Serve(ln); err != nil {
			logging.Error("[METRICS] server stopped: %v", err)
		}
	}()
	logging.Info("[METRICS] serving /metrics and /health on %s", ln.Addr())
	return nil
}

func (me *MetricsExporter) Shutdown(ctx context.Context) error {
	return me.server.ShutdownWithContext(ctx)
}
