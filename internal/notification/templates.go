package notification

import "fmt"

// Message bodies are Brazilian Portuguese; the clinic's patients are
// messaged over WhatsApp in their own language. Rendering is pure: same
// inputs, same body, no side effects.

const dateLayout = "02/01/2006"
const hourLayout = "15h04"

// RenderMessage produces the outbound body for a notification kind.
func RenderMessage(kind Kind, data TemplateData) (string, error) {
	switch kind {
	case KindReminder72h:
		return reminderMessage(data, "3 dias"), nil
	case KindReminder48h:
		return reminderMessage(data, "2 dias"), nil
	case KindConfirmation:
		return confirmationMessage(data), nil
	case KindCancellation:
		return cancellationMessage(data), nil
	case KindDoctorAlert:
		return doctorAlertMessage(data), nil
	default:
		return "", fmt.Errorf("notification: no template for kind %q", kind)
	}
}

func reminderMessage(data TemplateData, distance string) string {
	return fmt.Sprintf(
		"Olá, %s! Lembrete: sua consulta na %s é em %s, no sábado %s às %s. Se precisar remarcar ou cancelar, responda esta mensagem com antecedência mínima de 12 horas.",
		firstName(data.PatientName),
		data.ClinicName,
		distance,
		data.ScheduledAt.Format(dateLayout),
		data.ScheduledAt.Format(hourLayout),
	)
}

func confirmationMessage(data TemplateData) string {
	return fmt.Sprintf(
		"Olá, %s! Sua consulta na %s foi agendada para sábado, %s às %s. Até lá!",
		firstName(data.PatientName),
		data.ClinicName,
		data.ScheduledAt.Format(dateLayout),
		data.ScheduledAt.Format(hourLayout),
	)
}

func cancellationMessage(data TemplateData) string {
	msg := fmt.Sprintf(
		"Olá, %s. Sua consulta de sábado, %s às %s na %s foi cancelada.",
		firstName(data.PatientName),
		data.ScheduledAt.Format(dateLayout),
		data.ScheduledAt.Format(hourLayout),
		data.ClinicName,
	)
	if data.Reason != "" {
		msg += " Motivo: " + data.Reason + "."
	}
	return msg + " Quando quiser, responda esta mensagem para reagendar."
}

func doctorAlertMessage(data TemplateData) string {
	return fmt.Sprintf(
		"Nova consulta agendada: %s, sábado %s às %s.",
		data.PatientName,
		data.ScheduledAt.Format(dateLayout),
		data.ScheduledAt.Format(hourLayout),
	)
}

func firstName(full string) string {
	if full == "" {
		return "paciente"
	}
	for i, r := range full {
		if r == ' ' {
			return full[:i]
		}
	}
	return full
}

// patientFacing reports whether a kind is delivered to the patient (and is
// therefore gated on consent) rather than to clinic staff.
func patientFacing(kind Kind) bool {
	return kind != KindDoctorAlert
}
