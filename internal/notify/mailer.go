// Package notify delivers user emails and operator alerts. Every send
// is best-effort: failures are returned for logging and never affect
// core state.
package notify

import (
	"fmt"
	"net/smtp"

	"github.com/sharevest/backend/internal/config"
	"github.com/sharevest/backend/internal/model"
	"github.com/sharevest/backend/internal/money"
)

type Mailer struct {
	cfg config.SMTPConfig
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) send(to, subject, htmlBody string) error {
	if m.cfg.Host == "" || m.cfg.User == "" {
		return fmt.Errorf("smtp not configured")
	}

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)

	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/html; charset=utf-8\r\n"+
		"\r\n"+
		"%s\r\n", to, subject, htmlBody))

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	return smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg)
}

// WithdrawalPaid emails the payout confirmation with a receipt.
func (m *Mailer) WithdrawalPaid(email string, w *model.Withdrawal) error {
	providerRef := ""
	if w.ProviderReference != nil {
		providerRef = *w.ProviderReference
	}
	subject := "Your withdrawal has been paid"
	body := fmt.Sprintf(`
		<h2>Withdrawal successful</h2>
		<p>Your withdrawal of <strong>%s</strong> has been paid out.</p>
		<table border="1" cellpadding="5" style="border-collapse: collapse;">
			<tr><td>Reference</td><td>%s</td></tr>
			<tr><td>Provider reference</td><td>%s</td></tr>
			<tr><td>Amount</td><td>%s</td></tr>
		</table>
		<p>Thank you for using Sharevest.</p>`,
		money.Format(w.Amount, string(w.Currency)),
		w.ClientReference, providerRef,
		money.Format(w.Amount, string(w.Currency)))
	return m.send(email, subject, body)
}

// WithdrawalFailed emails the failure notice; the funds are back in
// the user's available balance.
func (m *Mailer) WithdrawalFailed(email string, w *model.Withdrawal) error {
	reason := "not specified"
	if w.FailureReason != nil && *w.FailureReason != "" {
		reason = *w.FailureReason
	}
	subject := "Your withdrawal could not be completed"
	body := fmt.Sprintf(`
		<h2>Withdrawal failed</h2>
		<p>Your withdrawal of <strong>%s</strong> (reference %s) was not completed.</p>
		<p>Reason: %s</p>
		<p>The funds have been returned to your available balance.</p>`,
		money.Format(w.Amount, string(w.Currency)), w.ClientReference, reason)
	return m.send(email, subject, body)
}

// LateFeeApplied emails the plan holder after a penalty run touched
// their plan.
func (m *Mailer) LateFeeApplied(email string, plan *model.InstallmentPlan, applied int64, cap int64) error {
	subject := "Late fee applied to your installment plan"
	body := fmt.Sprintf(`
		<h2>Late fee applied</h2>
		<p>A late fee of <strong>%s</strong> was applied to your installment plan.</p>
		<table border="1" cellpadding="5" style="border-collapse: collapse;">
			<tr><td>Total late fees</td><td>%s</td></tr>
			<tr><td>Maximum possible</td><td>%s</td></tr>
			<tr><td>Months late</td><td>%d</td></tr>
		</table>
		<p>Please settle your overdue installments to stop further accrual.</p>`,
		money.Format(applied, string(plan.Currency)),
		money.Format(plan.CurrentLateFee, string(plan.Currency)),
		money.Format(cap, string(plan.Currency)),
		plan.MonthsLate)
	return m.send(email, subject, body)
}
