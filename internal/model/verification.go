package model

import (
	"errors"
	"fmt"
)

const (
	VerificationNone        = "none"
	VerificationQRCode      = "qr_code"
	VerificationGeolocation = "geolocation"
	VerificationPoll        = "poll"
	VerificationQuiz        = "quiz"
	VerificationManual      = "manual"
)

var ErrInvalidMetadata = errors.New("invalid verification metadata")

// VerificationMetadata is the signal a verification front-end attaches to a completion.
// Exactly the variant named by Method is read; the others stay nil.
type VerificationMetadata struct {
	Method string       `json:"method"`
	QR     *QRProof     `json:"qr,omitempty"`
	Geo    *GeoProof    `json:"geo,omitempty"`
	Poll   *PollProof   `json:"poll,omitempty"`
	Quiz   *QuizProof   `json:"quiz,omitempty"`
	Manual *ManualProof `json:"manual,omitempty"`
}

type QRProof struct {
	Code string `json:"code"`
}

type GeoProof struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters,omitempty"`
	DistanceMeters float64 `json:"distance_meters,omitempty"`
}

type PollProof struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type QuizProof struct {
	QuizID  string `json:"quiz_id"`
	Score   int    `json:"score"`
	Correct bool   `json:"correct"`
}

type ManualProof struct {
	Description string `json:"description"`
	ProofURL    string `json:"proof_url,omitempty"`
}

// Validate checks that the variant selected by Method carries its required fields.
func (m VerificationMetadata) Validate() error {
	switch m.Method {
	case VerificationNone:
		return nil
	case VerificationQRCode:
		if m.QR == nil || m.QR.Code == "" {
			return fmt.Errorf("%w: qr code required", ErrInvalidMetadata)
		}
	case VerificationGeolocation:
		if m.Geo == nil {
			return fmt.Errorf("%w: coordinates required", ErrInvalidMetadata)
		}
		if m.Geo.Latitude < -90 || m.Geo.Latitude > 90 || m.Geo.Longitude < -180 || m.Geo.Longitude > 180 {
			return fmt.Errorf("%w: coordinates out of range", ErrInvalidMetadata)
		}
	case VerificationPoll:
		if m.Poll == nil || m.Poll.QuestionID == "" || m.Poll.Answer == "" {
			return fmt.Errorf("%w: poll question and answer required", ErrInvalidMetadata)
		}
	case VerificationQuiz:
		if m.Quiz == nil || m.Quiz.QuizID == "" {
			return fmt.Errorf("%w: quiz id required", ErrInvalidMetadata)
		}
		if !m.Quiz.Correct {
			return fmt.Errorf("%w: quiz not passed", ErrInvalidMetadata)
		}
	case VerificationManual:
		if m.Manual == nil || m.Manual.Description == "" {
			return fmt.Errorf("%w: proof description required", ErrInvalidMetadata)
		}
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidMetadata, m.Method)
	}
	return nil
}
