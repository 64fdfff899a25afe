package email

import "context"

// SecurityNotifier envía avisos cuando cambia la postura de seguridad de
// una cuenta. Los envíos son best-effort: el caller loguea y sigue.
type SecurityNotifier struct {
	sender Sender
}

// NewSecurityNotifier crea un notifier sobre un Sender.
func NewSecurityNotifier(s Sender) *SecurityNotifier {
	return &SecurityNotifier{sender: s}
}

// TwoFactorEnabled avisa que se habilitó el segundo factor.
func (n *SecurityNotifier) TwoFactorEnabled(ctx context.Context, to string) error {
	return n.send(to,
		"Two-factor authentication enabled",
		"Two-factor authentication was just enabled on your account. If this wasn't you, reset your password immediately.")
}

// TwoFactorDisabled avisa que se deshabilitó el segundo factor.
func (n *SecurityNotifier) TwoFactorDisabled(ctx context.Context, to string) error {
	return n.send(to,
		"Two-factor authentication disabled",
		"Two-factor authentication was just disabled on your account. If this wasn't you, reset your password immediately.")
}

// BackupCodesRegenerated avisa que se regeneraron los backup codes.
func (n *SecurityNotifier) BackupCodesRegenerated(ctx context.Context, to string) error {
	return n.send(to,
		"Backup codes regenerated",
		"Your two-factor backup codes were regenerated. The previous codes no longer work.")
}

func (n *SecurityNotifier) send(to, subject, body string) error {
	if n == nil || n.sender == nil {
		return nil
	}
	return n.sender.Send(to, subject, "", body)
}
