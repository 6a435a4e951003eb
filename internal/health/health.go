package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type NetworkStatus struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
}

var (
	isReady         int32
	networkStatuses = make(map[string]*NetworkStatus)
	statusMutex     sync.RWMutex
)

func SetReady(ready bool) {
	if ready {
		atomic.StoreInt32(&isReady, 1)
	} else {
		atomic.StoreInt32(&isReady, 0)
	}
}

func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	statusMutex.RLock()
	defer statusMutex.RUnlock()

	if len(networkStatuses) == 0 || atomic.LoadInt32(&isReady) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready"))

		return
	}

	response := make(map[string]interface{})
	response["status"] = "Ready"
	response["networks"] = networkStatuses

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// RegisterProbe polls a per-network check, typically a custody balance read of
// that network's settlement wallet, and records the outcome for readiness.
func RegisterProbe(ctx context.Context, name string, interval time.Duration, probe func(ctx context.Context) error, logger *zerolog.Logger) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				err := probe(ctx)
				if err != nil {
					logger.Error().
						Err(err).
						Str("network", name).
						Msg("Health probe failed")
				}
				updateNetworkStatus(name, err == nil)
				time.Sleep(interval)
			}
		}
	}()
}

func updateNetworkStatus(name string, healthy bool) {
	statusMutex.Lock()
	defer statusMutex.Unlock()
	networkStatuses[name] = &NetworkStatus{
		Name:      name,
		Healthy:   healthy,
		CheckedAt: time.Now(),
	}
}
