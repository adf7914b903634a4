package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medchat/medchat/internal/domain/appointment"
	"github.com/medchat/medchat/internal/domain/diagnosis"
	"github.com/medchat/medchat/internal/domain/formulary"
	"github.com/medchat/medchat/internal/domain/symptom"
)

// Action and slot names shared with the dialogue engine's domain file.
const (
	ActionDiagnose        = "action_chan_doan_benh"
	ActionSuggestMedicine = "action_goi_y_thuoc"
	ActionBookAppointment = "action_dat_lich_hen"
	ActionAskAgain        = "action_hoi_lai_trieu_chung"
	ActionConfirmSymptoms = "action_xac_nhan_trieu_chung"

	SlotDiagnosis = "diagnosis"
	SlotSymptoms  = "symptoms"
	SlotPatientID = "patient_id"

	unknownDiagnosis = "unknown"
)

const (
	msgNoSymptoms = "Tôi không nhận diện được triệu chứng nào từ mô tả của bạn. " +
		"Vui lòng mô tả rõ hơn, ví dụ: 'Tôi bị sốt, ho, đau họng'."
	msgDiagnoseFailed = "Đã xảy ra lỗi khi chẩn đoán bệnh. Vui lòng cung cấp lại triệu chứng hoặc thử lại sau."
	msgDiagnosis      = "Dựa trên các triệu chứng (%s), bạn có thể mắc %s. " +
		"Vui lòng gặp bác sĩ để được chẩn đoán và điều trị chính xác."
	msgNoMedication = "Không tìm thấy gợi ý thuốc cho %s. Vui lòng gặp bác sĩ để được kê đơn phù hợp."
	msgMedication   = "Gợi ý điều trị cho %s:\n- Thuốc: %s\n- Hướng dẫn: %s\n- Lưu ý: %s"
	msgBooked       = "Lịch hẹn với bác sĩ %s đã được đặt vào %s."
	msgNoTime       = "thời gian chưa xác định"
	msgNoDoctor     = "Không tìm thấy bác sĩ nào để đặt lịch."
	msgBookFailed   = "Đã xảy ra lỗi khi đặt lịch hẹn: %v. Vui lòng thử lại."
	msgAskAgain     = "Bạn có thể mô tả thêm các triệu chứng bạn đang gặp phải không?"
	msgConfirm      = "Tôi đã ghi nhận triệu chứng: %s. Bạn có muốn tiếp tục chẩn đoán bệnh không?"
)

// SymptomExtractor turns free text into a symptom vector.
type SymptomExtractor interface {
	Vectorize(text string) symptom.Result
}

// Classifier maps a symptom vector to a raw disease label.
type Classifier interface {
	Predict(vector []int) (string, error)
}

// Booker books an appointment with the first available doctor. A nil
// booking with a nil error means no doctor was available.
type Booker interface {
	BookFirstAvailable(ctx context.Context, patientID string) (*appointment.Booking, error)
}

// ---------------------------------------------------------------------------
// Diagnosis
// ---------------------------------------------------------------------------

type DiagnoseAction struct {
	extractor  SymptomExtractor
	classifier Classifier
	logger     zerolog.Logger
}

func NewDiagnoseAction(extractor SymptomExtractor, classifier Classifier, logger zerolog.Logger) *DiagnoseAction {
	return &DiagnoseAction{extractor: extractor, classifier: classifier, logger: logger}
}

func (a *DiagnoseAction) Name() string { return ActionDiagnose }

func (a *DiagnoseAction) Run(ctx context.Context, d *Dispatcher, t Tracker) ([]Event, error) {
	res := a.extractor.Vectorize(t.LatestMessage.Text)
	a.logger.Info().
		Str("sender_id", t.SenderID).
		Strs("symptoms", res.Matched).
		Ints("vector", res.Vector).
		Msg("symptoms extracted")

	if !res.Detected() {
		d.Utter(msgNoSymptoms)
		return nil, nil
	}

	raw, err := a.classifier.Predict(res.Vector)
	if err != nil {
		a.logger.Error().Err(err).Str("sender_id", t.SenderID).Msg("diagnosis failed")
		d.Utter(msgDiagnoseFailed)
		return nil, nil
	}
	label := diagnosis.DisplayLabel(raw)
	a.logger.Info().Str("sender_id", t.SenderID).Str("diagnosis", label).Msg("diagnosis made")

	d.Utter(fmt.Sprintf(msgDiagnosis, strings.Join(res.Matched, ", "), label))
	return []Event{
		SlotSet(SlotDiagnosis, label),
		SlotSet(SlotSymptoms, res.Matched),
	}, nil
}

// ---------------------------------------------------------------------------
// Medication
// ---------------------------------------------------------------------------

type SuggestMedicationAction struct {
	formulary *formulary.Formulary
	logger    zerolog.Logger
}

func NewSuggestMedicationAction(f *formulary.Formulary, logger zerolog.Logger) *SuggestMedicationAction {
	return &SuggestMedicationAction{formulary: f, logger: logger}
}

func (a *SuggestMedicationAction) Name() string { return ActionSuggestMedicine }

func (a *SuggestMedicationAction) Run(ctx context.Context, d *Dispatcher, t Tracker) ([]Event, error) {
	resolved := a.resolve(t)
	display := formulary.NormalizeDiagnosis(resolved)
	a.logger.Info().
		Str("sender_id", t.SenderID).
		Str("resolved", resolved).
		Str("diagnosis", display).
		Msg("medication requested")

	entry, ok := a.formulary.Lookup(resolved)
	if !ok {
		d.Utter(fmt.Sprintf(msgNoMedication, display))
	} else {
		d.Utter(fmt.Sprintf(msgMedication, display, entry.Drug, entry.Instructions, entry.Caution))
	}
	return []Event{SlotSet(SlotDiagnosis, display)}, nil
}

// resolve prefers the diagnosis slot and falls back to a disease named in
// the latest message.
func (a *SuggestMedicationAction) resolve(t Tracker) string {
	if s, ok := t.SlotString(SlotDiagnosis); ok {
		return s
	}
	if label, ok := a.formulary.FindInText(t.LatestMessage.Text); ok {
		return label
	}
	return unknownDiagnosis
}

// ---------------------------------------------------------------------------
// Appointment booking
// ---------------------------------------------------------------------------

type BookAppointmentAction struct {
	booker Booker
	logger zerolog.Logger
}

func NewBookAppointmentAction(b Booker, logger zerolog.Logger) *BookAppointmentAction {
	return &BookAppointmentAction{booker: b, logger: logger}
}

func (a *BookAppointmentAction) Name() string { return ActionBookAppointment }

func (a *BookAppointmentAction) Run(ctx context.Context, d *Dispatcher, t Tracker) ([]Event, error) {
	patientID, ok := t.SlotString(SlotPatientID)
	if !ok {
		patientID = t.SenderID
	}

	b, err := a.booker.BookFirstAvailable(ctx, patientID)
	if err != nil {
		a.logger.Error().Err(err).Str("patient_id", patientID).Msg("booking failed")
		d.Utter(fmt.Sprintf(msgBookFailed, err))
		return nil, nil
	}
	if b == nil {
		d.Utter(msgNoDoctor)
		return nil, nil
	}
	when := b.Time
	if when == "" {
		when = msgNoTime
	}
	d.Utter(fmt.Sprintf(msgBooked, b.Doctor, when))
	return nil, nil
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

type AskSymptomsAgainAction struct{}

func (AskSymptomsAgainAction) Name() string { return ActionAskAgain }

func (AskSymptomsAgainAction) Run(ctx context.Context, d *Dispatcher, t Tracker) ([]Event, error) {
	d.Utter(msgAskAgain)
	return nil, nil
}

type ConfirmSymptomsAction struct{}

func (ConfirmSymptomsAction) Name() string { return ActionConfirmSymptoms }

func (ConfirmSymptomsAction) Run(ctx context.Context, d *Dispatcher, t Tracker) ([]Event, error) {
	d.Utter(fmt.Sprintf(msgConfirm, t.LatestMessage.Text))
	return nil, nil
}
