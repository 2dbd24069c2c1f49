package api

import (
	"errors"
	"net/http"
)

// handleGETFetch proxies a request through the asset cache so windows
// get the same offline fallback behavior for resources they load via
// the agent. The target URL is passed as the "url" query parameter and
// navigation requests set "navigation=true".
func (g *Gateway) handleGETFetch(w http.ResponseWriter, r *http.Request) {
	if g.assets == nil {
		http.Error(w, wrapError(errors.New("asset cache disabled")), http.StatusNotImplemented)
		return
	}
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, wrapError(errors.New("url parameter is required")), http.StatusBadRequest)
		return
	}
	navigation := r.URL.Query().Get("navigation") == "true"

	result, err := g.assets.Fetch(http.MethodGet, target, navigation)
	if err != nil {
		http.Error(w, wrapError(err), http.StatusBadGateway)
		return
	}
	for k, vals := range result.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	if result.FromCache {
		w.Header().Set("X-Asset-Cache", "hit")
	}
	w.WriteHeader(result.Status)
	w.Write(result.Body)
}
