package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/pivotscope/internal/database"
	"github.com/aristath/pivotscope/internal/scheduler"
)

// SystemHandlers serves health, status, and job-trigger endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases []*database.DB
	sched     *scheduler.Scheduler
	jobs      map[string]scheduler.Job
}

// SystemStatusResponse is the /api/system/status payload
type SystemStatusResponse struct {
	Status     string  `json:"status"`
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float64 `json:"ram_percent"`
	DataDirMB  float64 `json:"data_dir_mb"`
	Uptime     string  `json:"uptime"`
}

// DatabaseStatsResponse reports per-database file sizes
type DatabaseStatsResponse struct {
	Databases map[string]float64 `json:"databases_mb"`
	TotalMB   float64            `json:"total_mb"`
}

var startTime = time.Now()

// NewSystemHandlers creates the system handlers
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases ...*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		dataDir:   dataDir,
		databases: databases,
		jobs:      make(map[string]scheduler.Job),
	}
}

// SetJobs registers jobs for manual triggering, keyed by Job.Name()
func (h *SystemHandlers) SetJobs(sched *scheduler.Scheduler, jobs ...scheduler.Job) {
	h.sched = sched
	for _, job := range jobs {
		h.jobs[job.Name()] = job
	}
}

// HandleHealth pings every database and reports overall health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]string, len(h.databases))

	for _, db := range h.databases {
		if err := db.HealthCheck(r.Context()); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			checks[db.Name()] = err.Error()
			status = "degraded"
		} else {
			checks[db.Name()] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"databases": checks,
	})
}

// HandleSystemStatus reports CPU, memory, and disk usage
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, ramPct := h.systemStats()

	response := SystemStatusResponse{
		Status:     "ok",
		CPUPercent: cpuPct,
		RAMPercent: ramPct,
		DataDirMB:  h.dirSizeMB(h.dataDir),
		Uptime:     time.Since(startTime).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleDatabaseStats reports on-disk database sizes
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	response := DatabaseStatsResponse{Databases: make(map[string]float64, len(h.databases))}

	for _, db := range h.databases {
		var sizeMB float64
		if info, err := os.Stat(db.Path()); err == nil {
			sizeMB = float64(info.Size()) / 1024 / 1024
		}
		response.Databases[db.Name()] = sizeMB
		response.TotalMB += sizeMB
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleJobsStatus lists the registered jobs with their schedules and last outcomes
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	statuses := []scheduler.JobStatus{}
	if h.sched != nil {
		statuses = h.sched.Status()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"jobs": statuses})
}

// HandleTriggerJob runs a registered job immediately
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	job, ok := h.jobs[name]
	if !ok || h.sched == nil {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}

	if err := h.sched.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job trigger failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "completed", "job": name})
}

// systemStats returns CPU and RAM usage percentages. The short sampling
// interval keeps the endpoint responsive.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// dirSizeMB calculates the total size of a directory in MB
func (h *SystemHandlers) dirSizeMB(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}
