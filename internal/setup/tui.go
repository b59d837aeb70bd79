// Package setup implements the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/fundingtracker/config"
)

// DefaultFilename where the wizard writes its result.
const DefaultFilename = "config.gen.yaml"

// ErrCancelled is returned when the user declines to save.
var ErrCancelled = errors.New("setup cancelled by user")

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers raw wizard input.
type answers struct {
	apiURL          string
	refreshInterval string
	historyLimit    string
	topK            string
	requestTimeout  string
	retries         string
	dashboardAddr   string
	tlsDomains      string
}

func defaultAnswers() answers {
	d := config.Default()
	return answers{
		apiURL:          d.APIURL,
		refreshInterval: d.RefreshInterval.String(),
		historyLimit:    strconv.Itoa(d.HistoryLimit),
		topK:            strconv.Itoa(d.TopK),
		requestTimeout:  d.RequestTimeout.String(),
		retries:         strconv.Itoa(d.Retries),
		dashboardAddr:   d.DashboardAddr,
	}
}

// RunTUI launches the terminal configuration wizard and writes filename.
func RunTUI(filename string) error {
	if filename == "" {
		filename = DefaultFilename
	}
	a := defaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FUNDING TRACKER CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Point the dashboard at your funding backend.\n"))

	fmt.Println(stepStyle.Render("STEP 1: BACKEND"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Base url of the funding rate service").
				Value(&a.apiURL).
				Validate(config.ValidateAPIURL),
			huh.NewInput().
				Title("Request timeout").
				Value(&a.requestTimeout).
				Validate(validateDuration),
			huh.NewInput().
				Title("Retries on transport errors").
				Value(&a.retries).
				Validate(validateNonNegative),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("STEP 2: REFRESH"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Refresh interval").
				Options(
					huh.NewOption("1 minute", "1m0s"),
					huh.NewOption("5 minutes", "5m0s"),
					huh.NewOption("15 minutes", "15m0s"),
				).
				Value(&a.refreshInterval),
			huh.NewInput().
				Title("History snapshots for the chart tab").
				Value(&a.historyLimit).
				Validate(validatePositive),
			huh.NewInput().
				Title("Symbols on the chart").
				Value(&a.topK).
				Validate(validatePositive),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("STEP 3: DASHBOARD"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Value(&a.dashboardAddr),
			huh.NewInput().
				Title("TLS domains").
				Description("Comma separated, empty serves plain HTTP").
				Value(&a.tlsDomains),
		),
	).Run()
	if err != nil {
		return err
	}

	cfg, err := a.config()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FUNDING TRACKER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary(cfg)))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return ErrCancelled
	}

	if err := write(filename, cfg); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nRun: fundingtracker -config %s", filename, filename)))
	return nil
}

func (a answers) config() (config.Config, error) {
	cfg := config.Default()
	cfg.APIURL = strings.TrimSpace(a.apiURL)
	cfg.DashboardAddr = strings.TrimSpace(a.dashboardAddr)

	var err error
	if cfg.RefreshInterval, err = time.ParseDuration(a.refreshInterval); err != nil {
		return config.Config{}, errors.Wrap(err, "refresh interval")
	}
	if cfg.RequestTimeout, err = time.ParseDuration(a.requestTimeout); err != nil {
		return config.Config{}, errors.Wrap(err, "request timeout")
	}
	if cfg.HistoryLimit, err = strconv.Atoi(strings.TrimSpace(a.historyLimit)); err != nil {
		return config.Config{}, errors.Wrap(err, "history limit")
	}
	if cfg.TopK, err = strconv.Atoi(strings.TrimSpace(a.topK)); err != nil {
		return config.Config{}, errors.Wrap(err, "top k")
	}
	if cfg.Retries, err = strconv.Atoi(strings.TrimSpace(a.retries)); err != nil {
		return config.Config{}, errors.Wrap(err, "retries")
	}

	for _, d := range strings.Split(a.tlsDomains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			cfg.TLSDomains = append(cfg.TLSDomains, d)
		}
	}

	return cfg, cfg.Validate()
}

func summary(cfg config.Config) string {
	tls := "off"
	if len(cfg.TLSDomains) > 0 {
		tls = strings.Join(cfg.TLSDomains, ", ")
	}
	return fmt.Sprintf(
		"Backend: %s\nRefresh: %s\nHistory: %d snapshots, top %d\nDashboard: %s (TLS: %s)\n",
		cfg.APIURL, cfg.RefreshInterval, cfg.HistoryLimit, cfg.TopK, cfg.DashboardAddr, tls,
	)
}

func write(filename string, cfg config.Config) error {
	data, err := yaml.Marshal(cfg.Tmp())
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a duration like 30s or 5m")
	}
	if d < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

func validatePositive(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be an integer")
	}
	if v <= 0 {
		return errors.New("must be greater than zero")
	}
	return nil
}

func validateNonNegative(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be an integer")
	}
	if v < 0 {
		return errors.New("must not be negative")
	}
	return nil
}
