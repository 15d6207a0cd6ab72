package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/shiva-1301/hospiico/internal/logging"
)

type SimConfig struct {
	APIBaseURL string
	City       string
	Workers    int
	Rounds     int
	DaysAhead  int
	Timeout    time.Duration
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	at := func(pct int) time.Duration {
		return latencies[min(len(latencies)*pct/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], at(50), at(95)
}

type Metrics struct {
	Walk    OperationMetrics // select_hospital .. select_time
	Confirm OperationMetrics
}

// RoundResult is one slot contested by every worker.
type RoundResult struct {
	Hospital string
	Doctor   string
	Date     string
	Time     string
	Winners  []string
}

type Simulator struct {
	config  SimConfig
	client  *apiClient
	logger  *zap.Logger
	metrics Metrics
	rounds  []RoundResult
}

func main() {
	logger, err := logging.New("development", "info")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("simulator starting",
		zap.String("api", cfg.APIBaseURL),
		zap.String("city", cfg.City),
		zap.Int("workers", cfg.Workers),
		zap.Int("rounds", cfg.Rounds))

	sim := NewSimulator(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
	if err := sim.Run(context.Background()); err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}
	sim.PrintReport(os.Stdout)

	if sim.DoubleBookings() > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SIM")
	v.AutomaticEnv()
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("CITY", "Hyderabad")
	v.SetDefault("WORKERS", 10)
	v.SetDefault("ROUNDS", 5)
	v.SetDefault("DAYS_AHEAD", 7)
	v.SetDefault("TIMEOUT", "10s")

	return SimConfig{
		APIBaseURL: strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		City:       v.GetString("CITY"),
		Workers:    v.GetInt("WORKERS"),
		Rounds:     v.GetInt("ROUNDS"),
		DaysAhead:  v.GetInt("DAYS_AHEAD"),
		Timeout:    v.GetDuration("TIMEOUT"),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers < 2 {
		return fmt.Errorf("SIM_WORKERS must be at least 2 to contend for a slot")
	}
	if cfg.Rounds <= 0 {
		return fmt.Errorf("SIM_ROUNDS must be > 0")
	}
	if cfg.DaysAhead < 1 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be >= 1 so every slot of the day is bookable")
	}
	return nil
}

func NewSimulator(cfg SimConfig, client *http.Client, logger *zap.Logger) *Simulator {
	return &Simulator{
		config: cfg,
		client: &apiClient{baseURL: cfg.APIBaseURL, http: client},
		logger: logger,
	}
}

// Run plays Rounds rounds. Each round picks a hospital, doctor and open slot,
// walks every worker's own session up to patient details and then releases
// all confirms at once.
func (s *Simulator) Run(ctx context.Context) error {
	hospitals, err := s.client.hospitalsIn(ctx, s.config.City)
	if err != nil {
		return fmt.Errorf("list hospitals: %w", err)
	}
	date := time.Now().AddDate(0, 0, s.config.DaysAhead).Format("2006-01-02")

	for round := range s.config.Rounds {
		h := hospitals[round%len(hospitals)]
		target, err := s.pickTarget(ctx, h, date, round)
		if err != nil {
			return fmt.Errorf("round %d: %w", round+1, err)
		}

		res := s.contend(ctx, target)
		s.rounds = append(s.rounds, res)
		s.logger.Info("round complete",
			zap.Int("round", round+1),
			zap.String("hospital", res.Hospital),
			zap.String("slot", res.Date+" "+res.Time),
			zap.Int("winners", len(res.Winners)))
	}
	return nil
}

type target struct {
	hospital hospital
	doctor   doctor
	date     string
	time     string
}

func (s *Simulator) pickTarget(ctx context.Context, h hospital, date string, round int) (target, error) {
	probe := uuid.NewString()

	r, err := s.client.action(ctx, actionRequest{SessionID: probe, Action: "select_hospital", Value: h.ID})
	if err != nil || r.Status != http.StatusOK {
		return target{}, actionErr("select_hospital", r, err)
	}
	if len(r.Doctors) == 0 {
		return target{}, fmt.Errorf("%s has no doctors", h.Name)
	}
	d := r.Doctors[round%len(r.Doctors)]

	if r, err = s.client.action(ctx, actionRequest{SessionID: probe, Action: "select_doctor", Value: d.ID}); err != nil || r.Status != http.StatusOK {
		return target{}, actionErr("select_doctor", r, err)
	}
	if r, err = s.client.action(ctx, actionRequest{SessionID: probe, Action: "select_date", Value: date}); err != nil || r.Status != http.StatusOK {
		return target{}, actionErr("select_date", r, err)
	}
	if len(r.AvailableSlots) == 0 {
		return target{}, fmt.Errorf("%s has no open slots on %s", d.Name, date)
	}

	return target{hospital: h, doctor: d, date: date, time: r.AvailableSlots[0]}, nil
}

func (s *Simulator) contend(ctx context.Context, t target) RoundResult {
	res := RoundResult{Hospital: t.hospital.Name, Doctor: t.doctor.Name, Date: t.date, Time: t.time}

	var (
		ready sync.WaitGroup
		done  sync.WaitGroup
		mu    sync.Mutex
	)
	start := make(chan struct{})

	for w := range s.config.Workers {
		ready.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			sessionID := uuid.NewString()

			walked := s.walk(ctx, sessionID, t)
			ready.Done()
			if !walked {
				return
			}
			<-start

			began := time.Now()
			r, err := s.client.action(ctx, actionRequest{
				SessionID:   sessionID,
				Action:      "confirm_booking",
				UserID:      fmt.Sprintf("sim-user-%d", w),
				PatientName: fmt.Sprintf("Simulated Patient %d", w),
				Reason:      "load test",
			})
			latency := time.Since(began)

			success := err == nil && r.Status == http.StatusOK
			s.metrics.Confirm.Record(latency, success, err == nil && isConflict(r))
			if success {
				mu.Lock()
				res.Winners = append(res.Winners, r.AppointmentID)
				mu.Unlock()
			}
		}()
	}

	ready.Wait()
	close(start)
	done.Wait()
	return res
}

// walk moves a fresh session to patient details for the target slot.
func (s *Simulator) walk(ctx context.Context, sessionID string, t target) bool {
	steps := []actionRequest{
		{SessionID: sessionID, Action: "select_hospital", Value: t.hospital.ID},
		{SessionID: sessionID, Action: "select_doctor", Value: t.doctor.ID},
		{SessionID: sessionID, Action: "select_date", Value: t.date},
		{SessionID: sessionID, Action: "select_time", Value: t.time},
	}
	began := time.Now()
	for _, step := range steps {
		r, err := s.client.action(ctx, step)
		if err != nil || r.Status != http.StatusOK {
			s.metrics.Walk.Record(time.Since(began), false, false)
			s.logger.Warn("session walk failed", zap.Error(actionErr(step.Action, r, err)))
			return false
		}
	}
	s.metrics.Walk.Record(time.Since(began), true, false)
	return true
}

func isConflict(r actionReply) bool {
	return r.Code == "slot_taken" || r.Status == http.StatusConflict
}

func actionErr(action string, r actionReply, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%s: status %d: %s", action, r.Status, r.Error)
}

// DoubleBookings counts rounds where more than one confirm succeeded.
func (s *Simulator) DoubleBookings() int {
	n := 0
	for _, r := range s.rounds {
		if len(r.Winners) > 1 {
			n++
		}
	}
	return n
}

func (s *Simulator) PrintReport(w io.Writer) {
	line := strings.Repeat("=", 80)
	fmt.Fprintln(w, "\n"+line)
	fmt.Fprintln(w, "SIMULATION REPORT")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "City: %s\n", s.config.City)
	fmt.Fprintf(w, "Workers per slot: %d\n", s.config.Workers)
	fmt.Fprintf(w, "Rounds: %d\n\n", len(s.rounds))

	for i, r := range s.rounds {
		fmt.Fprintf(w, "Round %d: %s / %s at %s %s -> %d winner(s)\n",
			i+1, r.Hospital, r.Doctor, r.Date, r.Time, len(r.Winners))
	}
	fmt.Fprintln(w)

	printOperationReport(w, "Session walk", &s.metrics.Walk)
	printOperationReport(w, "Confirm", &s.metrics.Confirm)

	if n := s.DoubleBookings(); n > 0 {
		fmt.Fprintf(w, "DOUBLE BOOKINGS: %d round(s) booked the same slot more than once\n", n)
	} else {
		fmt.Fprintln(w, "No double bookings.")
	}
}

func printOperationReport(w io.Writer, name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Fprintf(w, "%s:\n", name)
	fmt.Fprintf(w, "  Total: %d\n", total)
	fmt.Fprintf(w, "  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Fprintf(w, "  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Fprintf(w, "  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Fprintf(w, "  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
}
