package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"eyecare-intake/internal/consultation"
)

const (
	fontFamily = "DejaVu"
	textWidth  = 500.0
)

// DefaultFontPaths are the usual DejaVu locations on Alpine and Debian images.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

var ErrNoFont = errors.New("no usable font for PDF")

type TelegramClient interface {
	SendMessage(chatID int64, text string) error
	SendDocument(chatID int64, fileData []byte, fileName string) error
}

type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(tg TelegramClient, doctorChatID int64, fontPaths []string, logger *slog.Logger) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    fontPaths,
		logger:       logger.With("component", "report"),
		now:          time.Now,
	}
}

// Section is one titled block of the referral document.
type Section struct {
	Title string
	Lines []string
}

// Compose lays out the referral for a completed session.
func Compose(s consultation.Session, generatedAt time.Time) []Section {
	header := Section{
		Title: "Eye-care referral",
		Lines: []string{
			"Date: " + generatedAt.Format("2006-01-02 15:04"),
			"Session: " + s.ID,
			"Presenting complaint: " + s.InitialCondition,
		},
	}

	rec := Section{Title: "Recommendation"}
	if s.Recommendation != nil {
		rec.Lines = append(rec.Lines,
			"Specialist: "+string(s.Recommendation.Specialist),
			s.Recommendation.Reasoning,
		)
	} else {
		rec.Lines = append(rec.Lines, "Specialist: "+string(s.Leading))
	}

	conf := Section{
		Title: "Confidence",
		Lines: []string{fmt.Sprintf("Overall: %.0f%%", s.Confidence.Overall*100)},
	}
	for _, sp := range consultation.Specialists {
		conf.Lines = append(conf.Lines, fmt.Sprintf("- %s: %.0f%%", sp, s.Confidence.PerSpecialist[sp]*100))
	}

	transcript := Section{Title: "Interview"}
	if len(s.History) == 0 {
		transcript.Lines = append(transcript.Lines, "- No questions were answered.")
	}
	for i, t := range s.History {
		transcript.Lines = append(transcript.Lines,
			fmt.Sprintf("Q%d: %s", i+1, t.Question),
			fmt.Sprintf("A%d: %s", i+1, t.Answer),
		)
	}

	sections := []Section{header, rec, conf, transcript}
	if s.Summary != "" {
		sections = append(sections, Section{Title: "Summary for the doctor", Lines: []string{s.Summary}})
	}
	return sections
}

// PlainText flattens sections into a chat message.
func PlainText(sections []Section) string {
	var b strings.Builder
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.ToUpper(sec.Title))
		b.WriteString("\n")
		for _, line := range sec.Lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// SendReferral renders the session as a PDF and posts it to the doctor's chat.
// Without a usable font the referral goes out as a plain message instead.
func (s *Service) SendReferral(ctx context.Context, sess consultation.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "generating referral", "session_id", sess.ID)

	sections := Compose(sess, s.now())
	data, err := s.render(sections)
	if errors.Is(err, ErrNoFont) {
		s.logger.WarnContext(ctx, "PDF unavailable, sending referral as text", "session_id", sess.ID, "error", err)
		if err := s.tgClient.SendMessage(s.doctorChatID, PlainText(sections)); err != nil {
			return fmt.Errorf("send referral text: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("referral_%s.pdf", sess.ID)
	if err := s.tgClient.SendDocument(s.doctorChatID, data, fileName); err != nil {
		return fmt.Errorf("send referral: %w", err)
	}
	return nil
}

func (s *Service) render(sections []Section) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := s.loadFont(&pdf); err != nil {
		return nil, err
	}

	for i, sec := range sections {
		size := 14.0
		if i == 0 {
			size = 20
		}
		if err := pdf.SetFont(fontFamily, "", size); err != nil {
			return nil, err
		}
		pdf.Cell(nil, sec.Title)
		pdf.Br(size + 6)

		if err := pdf.SetFont(fontFamily, "", 11); err != nil {
			return nil, err
		}
		for _, line := range sec.Lines {
			wrapped, err := pdf.SplitText(line, textWidth)
			if err != nil {
				wrapped = []string{line}
			}
			for _, l := range wrapped {
				if pdf.GetY() > gopdf.PageSizeA4.H-60 {
					pdf.AddPage()
				}
				pdf.Cell(nil, l)
				pdf.Br(14)
			}
		}
		pdf.Br(12)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err != nil {
			lastErr = err
			continue
		}
		s.logger.Debug("font loaded", "path", path)
		return nil
	}
	return fmt.Errorf("%w: %v", ErrNoFont, lastErr)
}
