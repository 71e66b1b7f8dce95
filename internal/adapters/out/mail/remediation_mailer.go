// internal/adapters/out/mail/remediation_mailer.go
package mail

import (
	"context"
	"fmt"
	"log"
	"strings"

	issuanceapp "tokenissuer/internal/application/issuance"
	"tokenissuer/internal/domain/issuance"
)

// EmailClient は実際のメール送信クライアント（SendGrid など）を抽象化した下位レベルのインターフェースです。
type EmailClient interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// RemediationMailer は手作業での完了が必要な attempt をオペレーターへメールで知らせる。
type RemediationMailer struct {
	client      EmailClient
	fromAddress string
	toAddress   string
}

var _ issuanceapp.RemediationNotifier = (*RemediationMailer)(nil)

func NewRemediationMailer(client EmailClient, fromAddress, toAddress string) *RemediationMailer {
	return &RemediationMailer{
		client:      client,
		fromAddress: strings.TrimSpace(fromAddress),
		toAddress:   strings.TrimSpace(toAddress),
	}
}

func (m *RemediationMailer) NotifyRemediation(ctx context.Context, a issuance.Attempt) error {
	subject := fmt.Sprintf("[token-issuer] remediation needed: %s (%s)", a.ID, a.FailureReason)
	return m.client.Send(ctx, m.fromAddress, m.toAddress, subject, remediationBody(a))
}

// remediationBody lists every public artifact of a; the operator finishes the issuance from these.
func remediationBody(a issuance.Attempt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issuance attempt %s stopped and needs manual completion.\n\n", a.ID)
	fmt.Fprintf(&b, "  Network        : %s\n", a.Network)
	fmt.Fprintf(&b, "  Failed phase   : %s\n", a.FailedPhase)
	fmt.Fprintf(&b, "  Reason         : %s\n", a.FailureReason)
	fmt.Fprintf(&b, "  Payer          : %s\n", a.PayerAddress)
	if a.Mint != nil {
		fmt.Fprintf(&b, "  Mint           : %s (decimals %d)\n", a.Mint.MintAddress, a.Mint.Decimals)
	}
	if d := a.Distribution; d != nil {
		fmt.Fprintf(&b, "  User account   : %s\n", d.UserTokenAccount)
		if d.UserShare != nil {
			fmt.Fprintf(&b, "  User share     : %s\n", d.UserShare)
		}
		if d.ReserveTokenAccount != "" {
			fmt.Fprintf(&b, "  Reserve account: %s\n", d.ReserveTokenAccount)
		}
		if d.ReserveShare != nil {
			fmt.Fprintf(&b, "  Reserve share  : %s\n", d.ReserveShare)
		}
	}
	if a.ReserveOwner != "" {
		fmt.Fprintf(&b, "  Reserve owner  : %s\n", a.ReserveOwner)
	}
	if a.Metadata != nil {
		fmt.Fprintf(&b, "  Metadata PDA   : %s\n", a.Metadata.Address)
	}
	fmt.Fprintf(&b, "\nDetail: %s\n", a.FailureDetail)
	return b.String()
}

// LogNotifier only logs. Used when REMEDIATION_EMAIL is not configured.
type LogNotifier struct{}

var _ issuanceapp.RemediationNotifier = LogNotifier{}

func (LogNotifier) NotifyRemediation(ctx context.Context, a issuance.Attempt) error {
	mint := ""
	if a.Mint != nil {
		mint = a.Mint.MintAddress
	}
	log.Printf("[remediation] WARN: attempt needs manual completion attemptId=%s network=%s phase=%s reason=%s mint=%s",
		a.ID, a.Network, a.FailedPhase, a.FailureReason, mint)
	return nil
}
