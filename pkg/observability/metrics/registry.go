package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a Prometheus registry with the HTTP collectors, Go runtime
// and process collectors, and a build_info gauge.
type Registry struct {
	registry *prometheus.Registry
	http     *HTTPMetrics
}

// BuildInfo labels the build_info gauge.
type BuildInfo struct {
	Version   string
	Commit    string
	GoVersion string
}

// NewRegistry creates a registry with the default collectors registered.
func NewRegistry(build BuildInfo) *Registry {
	reg := prometheus.NewRegistry()
	httpMetrics := newHTTPMetrics()
	reg.MustRegister(httpMetrics.collectors()...)

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "devserver_build_info",
		Help: "Build metadata of the running binary, always 1",
	}, []string{"version", "commit", "go_version"})
	buildInfo.WithLabelValues(build.Version, build.Commit, build.GoVersion).Set(1)
	reg.MustRegister(buildInfo)

	return &Registry{registry: reg, http: httpMetrics}
}

// HTTP returns the request collectors.
func (r *Registry) HTTP() *HTTPMetrics {
	return r.http
}

// MustRegister registers additional collectors and panics on error.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
