package requirements

import (
	"context"
	"database/sql"
	"fmt"
	"go/version"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/installkit/installkit/pkg/config"
)

// Check is one line of the environment report.
type Check struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Required string `json:"required"`
	Current  string `json:"current"`
	Status   bool   `json:"status"`
	Critical bool   `json:"critical"`
}

// Report is the outcome of an environment check.
type Report struct {
	Checks         []Check `json:"checks"`
	AllPassed      bool    `json:"all_passed"`
	CriticalFailed bool    `json:"critical_failed"`
	CanProceed     bool    `json:"can_proceed"`
}

// Checker evaluates the static environment check list.
type Checker struct {
	cfg        config.RequirementsConfig
	projectDir string
	logger     zerolog.Logger

	goVersion func() string
	drivers   func() []string
	freeBytes func(ctx context.Context, path string) (uint64, error)
}

// NewChecker creates a checker for cfg. Free disk space is measured on the
// volume holding projectDir.
func NewChecker(cfg config.RequirementsConfig, projectDir string, logger zerolog.Logger) *Checker {
	return &Checker{
		cfg:        cfg,
		projectDir: projectDir,
		logger:     logger.With().Str("component", "requirements").Logger(),
		goVersion:  runtime.Version,
		drivers:    sql.Drivers,
		freeBytes:  diskFree,
	}
}

func diskFree(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Check runs every check. It never fails; problems show up as failed checks.
func (c *Checker) Check(ctx context.Context) Report {
	var checks []Check

	current := c.goVersion()
	required := "go" + strings.TrimPrefix(c.cfg.GoVersion, "go")
	checks = append(checks, Check{
		Key:      "go_version",
		Name:     "Go Runtime Version",
		Required: strings.TrimPrefix(required, "go") + " or higher",
		Current:  strings.TrimPrefix(current, "go"),
		Status:   !version.IsValid(current) || version.Compare(current, required) >= 0,
		Critical: true,
	})

	registered := c.drivers()
	for _, d := range c.cfg.Drivers {
		checks = append(checks, driverCheck("driver_"+d, d, "Required", slices.Contains(registered, d), true))
	}
	for _, d := range c.cfg.RecommendedDrivers {
		checks = append(checks, driverCheck("driver_rec_"+d, d, "Recommended", slices.Contains(registered, d), false))
	}

	for _, dir := range c.cfg.WritableDirs {
		ok := writable(dir)
		current := "Writable"
		if !ok {
			current = "Not writable"
		}
		checks = append(checks, Check{
			Key:      filepath.Base(dir) + "_writable",
			Name:     fmt.Sprintf("%s Directory Writable", capitalize(filepath.Base(dir))),
			Required: "Required",
			Current:  current,
			Status:   ok,
			Critical: true,
		})
	}

	if c.cfg.MinFreeDiskMB > 0 {
		checks = append(checks, c.diskCheck(ctx))
	}

	report := Report{Checks: checks, AllPassed: true}
	for _, ch := range checks {
		if ch.Status {
			continue
		}
		report.AllPassed = false
		if ch.Critical {
			report.CriticalFailed = true
		}
	}
	report.CanProceed = !report.CriticalFailed

	c.logger.Info().
		Int("checks", len(checks)).
		Bool("all_passed", report.AllPassed).
		Bool("can_proceed", report.CanProceed).
		Msg("Environment checked")

	return report
}

func (c *Checker) diskCheck(ctx context.Context) Check {
	check := Check{
		Key:      "disk_space",
		Name:     "Free Disk Space",
		Required: fmt.Sprintf("%d MB", c.cfg.MinFreeDiskMB),
		Critical: false,
	}
	free, err := c.freeBytes(ctx, c.projectDir)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", c.projectDir).Msg("Failed to read disk usage")
		check.Current = "Unknown"
		return check
	}
	mb := free / (1024 * 1024)
	check.Current = fmt.Sprintf("%d MB", mb)
	check.Status = mb >= c.cfg.MinFreeDiskMB
	return check
}

func driverCheck(key, driver, required string, ok, critical bool) Check {
	current := "Registered"
	if !ok {
		current = "Not registered"
	}
	return Check{
		Key:      key,
		Name:     fmt.Sprintf("%s Driver", driver),
		Required: required,
		Current:  current,
		Status:   ok,
		Critical: critical,
	}
}

// writable probes dir by creating and removing a temporary file.
func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".installkit-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
