package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo, credentialsExhausted)
}

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "A constant metric with labels for version and commit hash.",
		},
		[]string{"version", "commit"},
	)

	credentialsExhausted = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "credentials_exhausted",
			Help: "API keys currently exhausted per model.",
		},
		[]string{"model"},
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}

func SetCredentialsExhausted(model string, n int) {
	credentialsExhausted.WithLabelValues(norm(model)).Set(float64(n))
}

// ResetCredentialsExhausted drops every per-model series after a quota reset.
func ResetCredentialsExhausted() {
	credentialsExhausted.Reset()
}
