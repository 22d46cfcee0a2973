package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointment-scheduling/internal/api"
	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Username     string
	Password     string
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	// HotProfessionals narrows bookings to a few calendars so workers collide.
	HotProfessionals int
	PatientLimit     int
	DaysAhead        int
	PostgresDSN      string
	Location         *time.Location
}

type DataPool struct {
	Professionals []uuid.UUID
	Patients      []uuid.UUID
	Dates         []appointment.Date

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) TakeRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.appointments))
	id := dp.appointments[idx]
	dp.appointments = append(dp.appointments[:idx], dp.appointments[idx+1:]...)
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, p99, max time.Duration) {
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
	pct := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), pct(50), pct(95), pct(99), latencies[len(latencies)-1]
}

type Metrics struct {
	Availability OperationMetrics
	Booking      OperationMetrics
	Cancel       OperationMetrics
	List         OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	token   string
	metrics Metrics
	logger  *logging.Logger
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logging.Default().Error("invalid config", "error", err)
		os.Exit(1)
	}
	logger := logging.New("info").With("service", "simulate")

	logger.Info("simulator starting",
		"duration", cfg.Duration.String(),
		"workers", cfg.Workers,
		"booking", cfg.BookingRatio,
		"cancel", cfg.CancelRatio,
		"read", cfg.ReadRatio,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Error("load data pool", "error", err)
		os.Exit(1)
	}
	logger.Info("data loaded", "professionals", len(dataPool.Professionals), "patients", len(dataPool.Patients), "dates", len(dataPool.Dates))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
	if err := sim.login(ctx); err != nil {
		logger.Error("login", "error", err)
		os.Exit(1)
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:       getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:         getDuration("SIM_DURATION", 30*time.Second),
		Workers:          getInt("SIM_WORKERS", 20),
		Username:         getEnv("SIM_USERNAME", "advisor01"),
		Password:         getEnv("SIM_PASSWORD", "clinic-demo-2024"),
		BookingRatio:     getFloat("SIM_BOOKING_RATIO", 0.4),
		CancelRatio:      getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:        getFloat("SIM_READ_RATIO", 0.5),
		HotProfessionals: getInt("SIM_HOT_PROFESSIONALS", 3),
		PatientLimit:     getInt("SIM_PATIENT_LIMIT", 2000),
		DaysAhead:        getInt("SIM_DAYS_AHEAD", 5),
		PostgresDSN:      baseCfg.PostgresDSN,
		Location:         baseCfg.Location,
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	switch {
	case cfg.Workers <= 0:
		return SimConfig{}, errors.New("SIM_WORKERS must be > 0")
	case cfg.Duration <= 0:
		return SimConfig{}, errors.New("SIM_DURATION must be > 0")
	case cfg.DaysAhead <= 0:
		return SimConfig{}, errors.New("SIM_DAYS_AHEAD must be > 0")
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT pr.id FROM professionals pr
		WHERE pr.is_active AND EXISTS (SELECT 1 FROM schedule_blocks sb WHERE sb.professional_id = pr.id)
		ORDER BY pr.id
		LIMIT $1
	`, cfg.HotProfessionals)
	if err != nil {
		return nil, fmt.Errorf("load professionals: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Professionals = append(dp.Professionals, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Patients = append(dp.Patients, id)
	}
	rows.Close()

	today := appointment.DateOf(time.Now(), cfg.Location)
	for i := 1; i <= cfg.DaysAhead; i++ {
		dp.Dates = append(dp.Dates, today.AddDays(i))
	}

	if len(dp.Professionals) == 0 {
		return nil, errors.New("no professionals with schedule blocks, run the seed first")
	}
	if len(dp.Patients) == 0 {
		return nil, errors.New("no patients loaded")
	}
	return dp, nil
}

func (s *Simulator) login(ctx context.Context) error {
	body, _ := json.Marshal(api.LoginRequest{Username: s.config.Username, Password: s.config.Password})
	status, resp, err := s.do(ctx, http.MethodPost, "/auth/login", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login returned %d: %s", status, resp)
	}
	var lr api.LoginResponse
	if err := json.Unmarshal(resp, &lr); err != nil {
		return fmt.Errorf("decode login: %w", err)
	}
	s.token = lr.Token
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", "duration", s.config.Duration.String(), "workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doList(ctx, rng)
		}
	}
}

// doBooking reads availability and books the first free slot, which is what
// most concurrent workers also pick, so conflicts are expected.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	profID := s.pool.Professionals[rng.Intn(len(s.pool.Professionals))]
	date := s.pool.Dates[rng.Intn(len(s.pool.Dates))]

	start := time.Now()
	status, body, err := s.do(ctx, http.MethodGet,
		fmt.Sprintf("/professionals/%s/availability?date=%s", profID, date), nil)
	s.metrics.Availability.Record(time.Since(start), statusOf(status, err))
	if err != nil || status != http.StatusOK {
		return
	}

	var avail api.AvailabilityResponse
	if err := json.Unmarshal(body, &avail); err != nil || len(avail.Slots) == 0 {
		return
	}
	slot := avail.Slots[0]
	if len(avail.Slots) > 1 && rng.Intn(4) == 0 {
		slot = avail.Slots[rng.Intn(len(avail.Slots))]
	}

	req, _ := json.Marshal(api.ReserveRequest{
		ProfessionalID: profID.String(),
		PatientID:      s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		Start:          slot.Start.Format(time.RFC3339),
	})
	start = time.Now()
	status, body, err = s.do(ctx, http.MethodPost, "/appointments", req)
	s.metrics.Booking.Record(time.Since(start), statusOf(status, err))
	if err != nil || status != http.StatusCreated {
		return
	}

	var out api.OutcomeResponse
	if json.Unmarshal(body, &out) == nil && out.Appointment.ID != uuid.Nil {
		s.pool.AddAppointment(out.Appointment.ID)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.TakeRandomAppointment(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, _, err := s.do(ctx, http.MethodPost, "/appointments/"+id.String()+"/cancel", nil)
	s.metrics.Cancel.Record(time.Since(start), statusOf(status, err))
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	profID := s.pool.Professionals[rng.Intn(len(s.pool.Professionals))]
	date := s.pool.Dates[rng.Intn(len(s.pool.Dates))]

	start := time.Now()
	status, _, err := s.do(ctx, http.MethodGet,
		fmt.Sprintf("/appointments?professional_id=%s&from=%s&to=%s&status=scheduled&limit=50", profID, date, date), nil)
	s.metrics.List.Record(time.Since(start), statusOf(status, err))
}

func (s *Simulator) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func statusOf(status int, err error) int {
	if err != nil {
		return 0
	}
	return status
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Hot calendars: %d\n\n", len(s.pool.Professionals))

	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("List", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, p99, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s p99=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond),
		p99.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
