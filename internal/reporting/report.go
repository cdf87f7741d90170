package reporting

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gonetids/internal/analysis"
	"gonetids/internal/logging"
	"gonetids/internal/models"

	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"
)

// appendixLimit caps the packet listing at the end of the PDF.
const appendixLimit = 25

const chartImage = "protocols"

// Options names the files a report writes. Empty chart paths skip the file
// but the PNG is still embedded in the PDF.
type Options struct {
	Title    string
	Path     string
	ChartPNG string
	ChartSVG string
}

// Input is what a report is built from.
type Input struct {
	Summary   analysis.Summary
	Narrative string
	Packets   []models.PacketData
}

// Result lists the files actually written. PDFPath is empty when the
// fallback text file was written instead.
type Result struct {
	PDFPath      string
	FallbackPath string
	ChartPNG     string
	ChartSVG     string
}

type Report struct {
	opts   Options
	logger *logrus.Entry
}

func New(opts Options, logger *logrus.Logger) *Report {
	if opts.Title == "" {
		opts.Title = "IDS/IPS Report"
	}
	if opts.Path == "" {
		opts.Path = "report.pdf"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Report{opts: opts, logger: logger.WithField("component", "report")}
}

// FallbackPath derives the text file written when the PDF cannot be.
func FallbackPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, ".pdf") + "_fallback.txt"
}

// Generate writes the charts and the PDF. A PDF failure is not returned:
// the narrative goes to the fallback file instead. Only a failure of the
// fallback itself is an error.
func (r *Report) Generate(in Input) (Result, error) {
	var res Result

	png := r.renderCharts(in.Summary, &res)

	if err := r.writePDF(in, png); err != nil {
		r.logger.WithError(err).Error("PDF generation failed")

		fallback := FallbackPath(r.opts.Path)
		if ferr := WriteFallback(fallback, r.opts.Title, in.Narrative); ferr != nil {
			r.logger.WithError(ferr).Error("Text fallback failed")
			return res, errors.Join(err, ferr)
		}
		r.logger.Infof("Text fallback written: %s", fallback)
		res.FallbackPath = fallback
		return res, nil
	}

	r.logger.Infof("PDF report written: %s", r.opts.Path)
	res.PDFPath = r.opts.Path
	return res, nil
}

// renderCharts writes the chart files and returns the PNG bytes to embed,
// or nil when no chart could be drawn.
func (r *Report) renderCharts(s analysis.Summary, res *Result) []byte {
	var buf bytes.Buffer
	if err := RenderChart(&buf, s.Protocols, ChartPNG); err != nil {
		r.logger.WithError(err).Warn("PNG chart not generated")
		return nil
	}
	png := buf.Bytes()

	if r.opts.ChartPNG != "" {
		if err := os.WriteFile(r.opts.ChartPNG, png, 0o644); err != nil {
			r.logger.WithError(err).Warn("Could not save PNG chart")
		} else {
			res.ChartPNG = r.opts.ChartPNG
			r.logger.Infof("PNG chart saved: %s", r.opts.ChartPNG)
		}
	}

	if r.opts.ChartSVG != "" {
		if err := WriteChart(r.opts.ChartSVG, s.Protocols, ChartSVG); err != nil {
			r.logger.WithError(err).Error("SVG chart not generated")
		} else {
			res.ChartSVG = r.opts.ChartSVG
			r.logger.Infof("SVG chart saved: %s", r.opts.ChartSVG)
		}
	}

	return png
}

func (r *Report) writePDF(in Input, png []byte) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(19, 12.7, 19)
	pdf.SetAutoPageBreak(true, 12.7)
	pdf.SetTitle(r.opts.Title, true)
	pdf.SetCreator("gonetids", true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr(r.opts.Title), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	heading(pdf, tr("I. Analysis summary"))
	bodyFont(pdf)
	pdf.MultiCell(0, 5, tr(in.Narrative), "", "L", false)
	pdf.Ln(8)

	heading(pdf, tr("II. Protocol statistics"))
	protocolTable(pdf, tr, in.Summary.Protocols)
	pdf.Ln(8)

	heading(pdf, tr("III. Protocol chart"))
	bodyFont(pdf)
	if png != nil {
		pdf.MultiCell(0, 5, tr("Visual distribution of the captured protocols."), "", "L", false)
		pdf.Ln(5)
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(chartImage, opts, bytes.NewReader(png))
		left, _, _, _ := pdf.GetMargins()
		pdf.ImageOptions(chartImage, left, pdf.GetY(), 165, 89, true, opts, 0, "")
	} else {
		pdf.MultiCell(0, 5, tr("The PNG chart could not be generated."), "", "L", false)
	}

	if len(in.Packets) > 0 {
		packetAppendix(pdf, tr, in.Packets)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build PDF: %w", err)
	}
	if err := pdf.OutputFileAndClose(r.opts.Path); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.opts.Path, err)
	}
	return nil
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 9, text, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func bodyFont(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
}

// protocolTable draws the centered protocol table, largest count first.
func protocolTable(pdf *fpdf.Fpdf, tr func(string) string, protocols []analysis.ProtocolStat) {
	if len(protocols) == 0 {
		bodyFont(pdf)
		pdf.MultiCell(0, 5, tr("No protocol data available."), "", "L", false)
		return
	}

	const (
		nameWidth  = 76.2
		countWidth = 50.8
	)
	pageWidth, _ := pdf.GetPageSize()
	x := (pageWidth - nameWidth - countWidth) / 2

	pdf.SetDrawColor(0x7F, 0x7F, 0x7F)
	pdf.SetFillColor(0x4F, 0x81, 0xBD)
	pdf.SetTextColor(0xF5, 0xF5, 0xF5)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetX(x)
	pdf.CellFormat(nameWidth, 9, tr("Protocol"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(countWidth, 9, tr("Packets"), "1", 1, "C", true, 0, "")

	pdf.SetFillColor(0xDC, 0xE6, 0xF1)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	for _, p := range analysis.SortedProtocolStats(protocols) {
		pdf.SetX(x)
		pdf.CellFormat(nameWidth, 7, tr(string(p.Protocol)), "1", 0, "C", true, 0, "")
		pdf.CellFormat(countWidth, 7, strconv.Itoa(p.Count), "1", 1, "C", true, 0, "")
	}
}

func packetAppendix(pdf *fpdf.Fpdf, tr func(string) string, packets []models.PacketData) {
	pdf.AddPage()
	heading(pdf, tr(fmt.Sprintf("Appendix: retained packets (first %d)", appendixLimit)))

	widths := []float64{12, 28, 55, 55, 27.9}
	header := []string{"#", "Protocol", "Source", "Destination", "Length"}

	pdf.SetDrawColor(0x7F, 0x7F, 0x7F)
	pdf.SetFillColor(0x4F, 0x81, 0xBD)
	pdf.SetTextColor(0xF5, 0xF5, 0xF5)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 9)
	for i, pkt := range packets {
		if i == appendixLimit {
			break
		}
		row := []string{
			strconv.Itoa(i + 1),
			string(analysis.Classify(pkt)),
			endpoint(pkt, true),
			endpoint(pkt, false),
			strconv.Itoa(pkt.Length),
		}
		for j, cell := range row {
			pdf.CellFormat(widths[j], 6, tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// endpoint formats one side of a packet as ip:port, ip, or MAC address.
func endpoint(pkt models.PacketData, source bool) string {
	switch {
	case pkt.Network != nil:
		ip := pkt.Network.DstIP
		if source {
			ip = pkt.Network.SrcIP
		}
		if pkt.Transport == nil {
			return ip
		}
		port := pkt.Transport.DstPort
		if source {
			port = pkt.Transport.SrcPort
		}
		return net.JoinHostPort(ip, strconv.Itoa(int(port)))
	case pkt.ARP != nil && source:
		return pkt.ARP.SenderIP
	case source:
		return pkt.EthSrc
	default:
		return pkt.EthDst
	}
}

// WriteFallback writes the title and narrative as plain text.
func WriteFallback(path, title, narrative string) error {
	content := "Title: " + title + "\n\n" + narrative
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write fallback %s: %w", path, err)
	}
	return nil
}
