package monitoring

import (
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"refbot/internal/utils"
)

// Handler serves /metrics to clients inside the allowed CIDRs only.
func Handler(allowed []string) (http.Handler, error) {
	nets, err := utils.ParseCIDRs(allowed)
	if err != nil {
		return nil, fmt.Errorf("metrics allow-list: %w", err)
	}

	mux := http.NewServeMux()
	metrics := promhttp.Handler()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !utils.IsAllowedIP(host, nets) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		metrics.ServeHTTP(w, r)
	})
	return mux, nil
}
