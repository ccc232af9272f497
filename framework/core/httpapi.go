package core

import (
	"net/http"

	"github.com/fixkme/calcsrv/httpapi"
	"github.com/prometheus/client_golang/prometheus"
)

// gatherer 为空时不开放 /metrics
func newHttpHandler(instanceId string, gatherer prometheus.Gatherer) http.Handler {
	return httpapi.NewRouter(&httpapi.Options{
		InstanceId: instanceId,
		Gatherer:   gatherer,
	})
}
