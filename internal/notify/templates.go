package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

const defaultFromName = "Clinic Appointments"

type Kind string

const (
	KindPending               Kind = "appointment_pending"
	KindAdminNew              Kind = "admin_new_appointment"
	KindApproved              Kind = "appointment_approved"
	KindCancelled             Kind = "appointment_cancelled"
	KindAdminPatientCancelled Kind = "admin_patient_cancelled"
	KindReminder              Kind = "appointment_reminder"
)

type emailData struct {
	AppointmentID    string
	PatientName      string
	PatientEmail     string
	PatientPhone     string
	ConsultationType string
	When             string
	Description      string
	ViewURL          string
	CancelURL        string
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

func mustTemplate(kind Kind, subject, body string) emailTemplate {
	t := template.Must(template.New(string(kind)).
		Option("missingkey=error").
		Parse(strings.TrimLeft(body, "\n")))
	return emailTemplate{subject: subject, body: t}
}

const detailsBlock = `
Consultation: {{.ConsultationType}}
Date and time: {{.When}}
{{- if .Description}}
Notes: {{.Description}}
{{- end}}
`

var templates = map[Kind]emailTemplate{
	KindPending: mustTemplate(KindPending, "Appointment received - pending confirmation", `
Hello {{.PatientName}},

We received your appointment request. The clinic will review it and you will
get another email once it is confirmed.
`+detailsBlock+`
View or cancel your appointment: {{.ViewURL}}
`),

	KindAdminNew: mustTemplate(KindAdminNew, "New appointment - approval required", `
A new appointment is waiting for approval.

Patient: {{.PatientName}}
Email: {{.PatientEmail}}
Phone: {{.PatientPhone}}
`+detailsBlock+`
Appointment id: {{.AppointmentID}}
`),

	KindApproved: mustTemplate(KindApproved, "Appointment confirmed", `
Hello {{.PatientName}},

Your appointment has been confirmed.
`+detailsBlock+`
If you can no longer attend, cancel here: {{.CancelURL}}
`),

	KindCancelled: mustTemplate(KindCancelled, "Appointment cancelled", `
Hello {{.PatientName}},

Your appointment has been cancelled.
`+detailsBlock+`
Details: {{.ViewURL}}
`),

	KindAdminPatientCancelled: mustTemplate(KindAdminPatientCancelled, "Appointment cancelled by the patient", `
The patient cancelled an appointment.

Patient: {{.PatientName}}
Email: {{.PatientEmail}}
Phone: {{.PatientPhone}}
`+detailsBlock+`
Appointment id: {{.AppointmentID}}
`),

	KindReminder: mustTemplate(KindReminder, "Appointment reminder", `
Hello {{.PatientName}},

This is a reminder of your upcoming appointment.
`+detailsBlock+`
View or cancel your appointment: {{.ViewURL}}
`),
}

func render(kind Kind, data emailData) (subject, body string, err error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("notify: unknown email kind %q", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("notify: render %s: %w", kind, err)
	}
	return tmpl.subject, buf.String(), nil
}
