package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	SlotRatio      float64
	BookingRatio   float64
	ApproveRatio   float64
	HorizonDays    int
	AdminJWTSecret string
}

type consultationType struct {
	ID              uuid.UUID `json:"id"`
	DurationMinutes int       `json:"duration_minutes"`
}

// DataPool tracks what the simulation has created so later operations can
// act on it.
type DataPool struct {
	Types   []consultationType
	mu      sync.Mutex
	pending []uuid.UUID
}

func (dp *DataPool) AddPending(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.pending = append(dp.pending, id)
}

// TakePending removes and returns a random pending appointment.
func (dp *DataPool) TakePending(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.pending) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.pending))
	id := dp.pending[idx]
	dp.pending[idx] = dp.pending[len(dp.pending)-1]
	dp.pending = dp.pending[:len(dp.pending)-1]
	return id, true
}

type Metrics struct {
	Slots    OperationMetrics
	Booking  OperationMetrics
	Approve  OperationMetrics
	ListDays OperationMetrics
}

type Simulator struct {
	config     SimConfig
	pool       *DataPool
	client     *http.Client
	metrics    Metrics
	adminToken string
	logger     zerolog.Logger
}

func main() {
	logger := logging.New("simulate", getEnv("APP_ENV", "development"), getEnv("LOG_LEVEL", "info"))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("slots", cfg.SlotRatio).
		Float64("booking", cfg.BookingRatio).
		Float64("approve", cfg.ApproveRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		pool:   &DataPool{},
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	if cfg.AdminJWTSecret != "" {
		token, err := adminToken(cfg.AdminJWTSecret, cfg.Duration+time.Minute)
		if err != nil {
			logger.Fatal().Err(err).Msg("sign admin token")
		}
		sim.adminToken = token
	} else {
		logger.Warn().Msg("ADMIN_JWT_SECRET not set, approvals are skipped")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	types, err := sim.loadConsultationTypes(ctx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("load consultation types")
	}
	sim.pool.Types = types
	logger.Info().Int("consultation_types", len(types)).Msg("data loaded")

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:     getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		SlotRatio:      getFloat("SIM_SLOT_RATIO", 0.5),
		BookingRatio:   getFloat("SIM_BOOKING_RATIO", 0.3),
		ApproveRatio:   getFloat("SIM_APPROVE_RATIO", 0.1),
		HorizonDays:    getInt("SIM_HORIZON_DAYS", 30),
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
	}

	// the remainder goes to unavailable-date reads
	total := cfg.SlotRatio + cfg.BookingRatio + cfg.ApproveRatio
	if total > 1 {
		cfg.SlotRatio /= total
		cfg.BookingRatio /= total
		cfg.ApproveRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HorizonDays <= 0 {
		return fmt.Errorf("SIM_HORIZON_DAYS must be > 0")
	}
	return nil
}

func adminToken(secret string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   "simulator",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *Simulator) loadConsultationTypes(ctx context.Context) ([]consultationType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/api/consultation-types", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var types []consultationType
	if err := json.NewDecoder(resp.Body).Decode(&types); err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("no consultation types, run cmd/seed first")
	}
	return types, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	faker := gofakeit.New(uint64(rng.Int63()))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.SlotRatio:
			s.doSlots(ctx, rng)
		case r < s.config.SlotRatio+s.config.BookingRatio:
			s.doBooking(ctx, rng, faker)
		case r < s.config.SlotRatio+s.config.BookingRatio+s.config.ApproveRatio:
			s.doApprove(ctx, rng)
		default:
			s.doUnavailableDates(ctx)
		}
	}
}

type slotsResponse struct {
	TimeSlots []struct {
		Time      string `json:"time"`
		Available bool   `json:"available"`
	} `json:"timeSlots"`
	IsDateAvailable bool `json:"isDateAvailable"`
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().AddDate(0, 0, 1+rng.Intn(s.config.HorizonDays)).Format("2006-01-02")
}

func (s *Simulator) querySlots(ctx context.Context, date string, ct consultationType) (*slotsResponse, int, error) {
	q := url.Values{"date": {date}, "consultation_type_id": {ct.ID.String()}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/api/slots?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}
	var out slotsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, err
	}
	return &out, resp.StatusCode, nil
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	ct := s.pool.Types[rng.Intn(len(s.pool.Types))]

	start := time.Now()
	_, status, err := s.querySlots(ctx, s.randomDate(rng), ct)
	s.metrics.Slots.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// doBooking looks up a free slot and books it with a fake patient.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker) {
	ct := s.pool.Types[rng.Intn(len(s.pool.Types))]
	date := s.randomDate(rng)

	slots, _, err := s.querySlots(ctx, date, ct)
	if err != nil || slots == nil || !slots.IsDateAvailable {
		return
	}
	var free []string
	for _, slot := range slots.TimeSlots {
		if slot.Available {
			free = append(free, slot.Time)
		}
	}
	if len(free) == 0 {
		return
	}

	body, _ := json.Marshal(map[string]string{
		"patient_name":         faker.Name(),
		"consultation_type_id": ct.ID.String(),
		"appointment_time":     date + "T" + free[rng.Intn(len(free))],
		"email":                faker.Email(),
		"phone":                faker.Phone(),
		"description":          faker.Sentence(6),
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/api/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(resp.Body).Decode(&created) == nil && created.ID != uuid.Nil {
				s.pool.AddPending(created.ID)
			}
		case http.StatusConflict, http.StatusUnprocessableEntity:
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doApprove(ctx context.Context, rng *rand.Rand) {
	if s.adminToken == "" {
		return
	}
	id, ok := s.pool.TakePending(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPatch,
		fmt.Sprintf("%s/admin/appointments/%s/status", s.config.APIBaseURL, id),
		bytes.NewReader([]byte(`{"status":"approved"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.adminToken)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}

	s.metrics.Approve.Record(latency, success, conflict)
}

func (s *Simulator) doUnavailableDates(ctx context.Context) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/api/unavailable-dates", nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ListDays.Record(latency, success, false)
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
