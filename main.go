package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gonetids/internal/analysis"
	"gonetids/internal/capture"
	"gonetids/internal/config"
	"gonetids/internal/logging"
	"gonetids/internal/metrics"
	"gonetids/internal/models"
	"gonetids/internal/reporting"
	"gonetids/internal/tui"

	"github.com/sirupsen/logrus"
)

type cliFlags struct {
	configPath  string
	dumpConfig  string
	iface       string
	interactive bool
	list        bool
	count       int
	timeout     time.Duration
	filter      string
	output      string
	pcapFile    string
	bpf         string
	metricsAddr string
	metricsFile string
	jsonPath    string
	logLevel    string
	logFormat   string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gonetids: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (cliFlags, map[string]bool) {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&f.dumpConfig, "dump-config", "", "Write the effective configuration to this file and exit")
	flag.StringVar(&f.iface, "i", "", "Interface to capture from, by index or name (default: first interface)")
	flag.BoolVar(&f.interactive, "interactive", false, "Pick the interface and follow the capture in a terminal UI")
	flag.BoolVar(&f.list, "list", false, "List capture interfaces and exit")
	flag.IntVar(&f.count, "count", 0, "Maximum number of packets to capture")
	flag.DurationVar(&f.timeout, "timeout", 0, "Maximum capture duration (e.g. 60s)")
	flag.StringVar(&f.filter, "filter", "", "Protocol label to keep after analysis (e.g. tcp, http; \"\" keeps all)")
	flag.StringVar(&f.output, "o", "", "PDF report path")
	flag.StringVar(&f.pcapFile, "pcap", "", "Read packets from a pcap file instead of an interface")
	flag.StringVar(&f.bpf, "bpf", "", "BPF filter applied at capture time")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /metrics, /health and /summary on this address until interrupted")
	flag.StringVar(&f.metricsFile, "metrics-file", "", "Write metrics in text format to this file at exit")
	flag.StringVar(&f.jsonPath, "json", "", "Write the summary as JSON to this file")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN, ERROR")
	flag.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set
}

// loadConfig reads the file when given and lays the explicitly set flags
// over it. A missing file falls back to the defaults.
func loadConfig(f cliFlags, set map[string]bool) (*config.Config, bool, error) {
	cfg := config.Default()
	missing := false
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			missing = true
		case err != nil:
			return nil, false, err
		default:
			cfg = loaded
		}
	}

	if set["i"] {
		cfg.Capture.Interface = f.iface
	}
	if set["count"] {
		cfg.Capture.MaxPackets = f.count
	}
	if set["timeout"] {
		cfg.Capture.Timeout = f.timeout
	}
	if set["filter"] {
		cfg.Analysis.ProtocolFilter = f.filter
	}
	if set["o"] {
		cfg.Report.Path = f.output
	}
	if set["pcap"] {
		cfg.Capture.PcapFile = f.pcapFile
	}
	if set["bpf"] {
		cfg.Capture.BPFFilter = f.bpf
	}
	if set["metrics-addr"] {
		cfg.Metrics.ListenAddr = f.metricsAddr
	}
	if set["metrics-file"] {
		cfg.Metrics.Textfile = f.metricsFile
	}
	if set["json"] {
		cfg.Report.SummaryJSON = f.jsonPath
	}
	if set["log-level"] {
		cfg.Logging.Level = f.logLevel
	}
	if set["log-format"] {
		cfg.Logging.Format = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, missing, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, missing, nil
}

func run() error {
	f, set := parseFlags()

	cfg, missing, err := loadConfig(f, set)
	if err != nil {
		return err
	}
	if f.dumpConfig != "" {
		return cfg.Save(f.dumpConfig)
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	if missing {
		logger.Warnf("Config file %s not found, using defaults", f.configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.list {
		devices, err := capture.ListInterfaces()
		if err != nil {
			return err
		}
		capture.PrintDevices(os.Stdout, devices)
		return nil
	}

	recorder := metrics.NewRecorder()
	var (
		exporter  *metrics.Exporter
		serveDone chan struct{}
	)
	if cfg.Metrics.ListenAddr != "" {
		exporter = metrics.NewExporter(cfg.Metrics.ListenAddr, recorder, logger)
		if err := exporter.Listen(); err != nil {
			return err
		}
		// The exporter outlives the capture context: an interrupt during the
		// capture only ends the capture.
		serveCtx, stopServe := context.WithCancel(context.Background())
		serveDone = make(chan struct{})
		go func() {
			defer close(serveDone)
			if err := exporter.Start(serveCtx); err != nil {
				logger.WithError(err).Error("Metrics exporter failed")
			}
		}()
		defer func() {
			stopServe()
			<-serveDone
		}()
	}

	batch, err := collect(ctx, cfg, f.interactive, recorder, logger)
	if err != nil {
		return err
	}

	session := analysis.NewSession(cfg.AnalysisConfig(), batch, logger)
	if rules := enabledRules(session.Detector()); len(rules) > 0 {
		logger.Infof("Detection rules: %s", strings.Join(rules, ", "))
	} else {
		logger.Warn("No detection rule is enabled, only traffic statistics will be reported")
	}
	session.Analyze()
	retained := session.Filter(cfg.Analysis.ProtocolFilter)
	summary := session.Summary()

	logSummary(logger, summary, cfg.Analysis.ProtocolFilter, retained)

	recorder.ObserveSummary(summary)
	if exporter != nil {
		exporter.SetSummary(summary)
	}

	if f.interactive {
		fmt.Println(tui.RenderSummary(summary))
	} else {
		reporting.PrintSummary(os.Stdout, summary)
	}

	if cfg.Report.SummaryJSON != "" {
		if err := reporting.WriteSummaryJSON(cfg.Report.SummaryJSON, summary); err != nil {
			logger.WithError(err).Error("Summary export failed")
		}
	}

	report := reporting.New(reporting.Options{
		Title:    cfg.Report.Title,
		Path:     cfg.Report.Path,
		ChartPNG: cfg.Report.ChartPNG,
		ChartSVG: cfg.Report.ChartSVG,
	}, logger)
	res, err := report.Generate(reporting.Input{
		Summary:   summary,
		Narrative: reporting.Narrative(summary),
		Packets:   session.Packets(),
	})
	if err != nil {
		logger.WithError(err).Error("Report could not be written")
	}
	if res.FallbackPath != "" {
		recorder.ObserveReportFallback()
	}

	if cfg.Metrics.Textfile != "" {
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.WithError(err).Error("Metrics export failed")
		}
	}

	if exporter != nil {
		waitCtx, stopWait := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stopWait()
		serveUntilInterrupted(waitCtx, exporter.Addr(), serveDone, logger)
	}
	return nil
}

// serveUntilInterrupted blocks until ctx ends or the exporter stops on its
// own. The deferred shutdown in run stops the server afterwards.
func serveUntilInterrupted(ctx context.Context, addr string, serveDone <-chan struct{}, logger *logrus.Logger) {
	logger.Infof("Serving metrics on %s until interrupted", addr)
	select {
	case <-ctx.Done():
	case <-serveDone:
	}
}

// enabledRules lists the detector rules that will run, in evaluation order.
func enabledRules(d *analysis.AnomalyDetector) []string {
	var names []string
	for _, rule := range d.Rules() {
		if rule.IsEnabled() {
			names = append(names, rule.Name())
		}
	}
	return names
}

// captureOptions feeds every collected packet to the recorder so the
// exported counters move during the capture.
func captureOptions(cfg *config.Config, rec *metrics.Recorder) capture.Options {
	opts := cfg.CaptureOptions()
	opts.OnPacket = rec.ObservePacket
	return opts
}

// collect runs one capture, from a pcap file or a live interface. An
// interrupt keeps the packets gathered so far.
func collect(ctx context.Context, cfg *config.Config, interactive bool, rec *metrics.Recorder, logger *logrus.Logger) ([]models.PacketData, error) {
	opts := captureOptions(cfg, rec)
	log := logger.WithField("component", "capture")
	started := time.Now()

	var (
		batch []models.PacketData
		err   error
	)

	if cfg.Capture.PcapFile != "" {
		log.Infof("Reading packets from %s", cfg.Capture.PcapFile)
		batch, err = capture.CollectOffline(ctx, cfg.Capture.PcapFile, opts)
	} else {
		dev, derr := chooseInterface(cfg.Capture.Interface, interactive, log)
		if derr != nil {
			return nil, derr
		}
		log.Infof("Starting capture on interface: %s", dev.Name)

		if interactive {
			batch, err = monitorCapture(ctx, dev.Name, opts)
		} else {
			batch, err = capture.Collect(ctx, dev.Name, opts)
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		log.Warnf("Capture interrupted, keeping %d packets", len(batch))
	case err != nil:
		return nil, fmt.Errorf("capture failed: %w", err)
	}

	rec.ObserveCapture(len(batch), time.Since(started))
	log.Infof("Packets captured: %d", len(batch))
	return batch, nil
}

func chooseInterface(choice string, interactive bool, log *logrus.Entry) (capture.Device, error) {
	devices, err := capture.ListInterfaces()
	if err != nil {
		return capture.Device{}, err
	}
	if len(devices) == 0 {
		return capture.Device{}, capture.ErrNoInterfaces
	}

	if interactive && choice == "" {
		dev, err := tui.Pick(devices)
		switch {
		case errors.Is(err, tui.ErrPickCanceled):
			log.Warnf("No interface selected, using %s", devices[0].Name)
			return devices[0], nil
		case err != nil:
			return capture.Device{}, err
		}
		return dev, nil
	}

	dev, ok, err := capture.ChooseInterface(os.Stdout, devices, choice)
	if err != nil {
		return capture.Device{}, err
	}
	if !ok {
		log.Warnf("Invalid interface %q, using %s", choice, dev.Name)
	}
	return dev, nil
}

// monitorCapture runs the collector in the background and follows it in the
// terminal UI. Quitting the UI stops the capture.
func monitorCapture(ctx context.Context, device string, opts capture.Options) ([]models.PacketData, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	live := analysis.NewTrafficStats()
	next := opts.OnPacket
	opts.OnPacket = func(pkt models.PacketData) {
		live.ProcessPacket(pkt)
		if next != nil {
			next(pkt)
		}
	}

	var (
		batch []models.PacketData
		err   error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		batch, err = capture.Collect(ctx, device, opts)
	}()

	if _, uiErr := tui.RunMonitor(tui.NewMonitorModel(live, device, opts.MaxPackets, done, cancel)); uiErr != nil {
		cancel()
		<-done
		return batch, fmt.Errorf("terminal UI failed: %w", uiErr)
	}
	<-done
	return batch, err
}

func logSummary(logger *logrus.Logger, s analysis.Summary, filter string, retained int) {
	log := logger.WithField("component", "summary")

	protocols := make([]string, 0, len(s.Protocols))
	for _, p := range s.Protocols {
		protocols = append(protocols, fmt.Sprintf("%s=%d", p.Protocol, p.Count))
	}
	log.WithFields(logrus.Fields{
		"filter":   filter,
		"retained": retained,
	}).Infof("Protocols detected: %s", strings.Join(protocols, ", "))

	if len(s.Findings) == 0 {
		log.Info("No attack detected")
		return
	}

	log.Warnf("%d attack(s) detected", len(s.Findings))
	for _, finding := range s.Findings {
		log.WithFields(logrus.Fields{
			"kind":     finding.Kind,
			"severity": finding.Severity,
			"subject":  finding.SubjectIP,
		}).Warn(finding.Message)
	}
}
