// internal/metrics/http.go
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tamzrod/zentec-bridge/internal/coordinator"
	"github.com/tamzrod/zentec-bridge/internal/entity"
	"github.com/tamzrod/zentec-bridge/internal/status"
)

// StateSource is what the HTTP API reads.
type StateSource interface {
	State() coordinator.State
}

type stateView struct {
	HasData        bool            `json:"has_data"`
	Health         uint16          `json:"health"`
	HealthName     string          `json:"health_name"`
	LastOK         bool            `json:"last_ok"`
	LastError      string          `json:"last_error,omitempty"`
	LastAttempt    *time.Time      `json:"last_attempt,omitempty"`
	LastSuccess    *time.Time      `json:"last_success,omitempty"`
	SecondsInError uint16          `json:"seconds_in_error"`
	FailedFields   []string        `json:"failed_fields,omitempty"`
	Snapshot       status.Snapshot `json:"snapshot"`
	Entities       entityView      `json:"entities"`
}

type entityView struct {
	HVACMode    entity.HVACMode     `json:"hvac_mode"`
	HVACAction  entity.HVACAction   `json:"hvac_action"`
	FanOn       status.Opt[bool]    `json:"fan_on"`
	FanPercent  status.Opt[int]     `json:"fan_percentage"`
	FanPreset   string              `json:"fan_preset_mode,omitempty"`
	Power       status.Opt[bool]    `json:"power"`
	CurrentTemp status.Opt[float64] `json:"current_temperature"`
	TargetTemp  status.Opt[float64] `json:"target_temperature"`
}

func view(st coordinator.State, p entity.Policy, now time.Time) stateView {
	v := stateView{
		HasData:        st.HasData,
		Health:         st.Health,
		HealthName:     status.HealthName(st.Health),
		LastOK:         st.LastOK,
		SecondsInError: st.SecondsInError(now),
		Snapshot:       st.Snapshot,
	}
	if st.LastErr != nil {
		v.LastError = st.LastErr.Error()
	}
	if !st.LastAttempt.IsZero() {
		t := st.LastAttempt
		v.LastAttempt = &t
	}
	if !st.LastSuccess.IsZero() {
		t := st.LastSuccess
		v.LastSuccess = &t
	}
	for _, fe := range st.Failed {
		v.FailedFields = append(v.FailedFields, fe.Field.String())
	}

	c := p.Climate(st.Snapshot, st.HasData)
	f := p.Fan(st.Snapshot, st.HasData)
	v.Entities = entityView{
		HVACMode:    c.Mode,
		HVACAction:  c.Action,
		FanOn:       f.On,
		FanPercent:  f.Percentage,
		FanPreset:   f.PresetMode,
		Power:       entity.PowerSwitch(st.Snapshot, st.HasData),
		CurrentTemp: c.CurrentTemp,
		TargetTemp:  c.TargetTemp,
	}
	return v
}

// Handler serves /metrics, /api/state and /healthz.
// /healthz answers 200 only while the last poll succeeded.
func Handler(m *Metrics, src StateSource, p entity.Policy) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view(src.State(), p, time.Now()))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := src.State()
		if !st.LastOK {
			http.Error(w, status.HealthName(st.Health), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	return mux
}

// Serve runs an HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", addr).Msg("http server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
