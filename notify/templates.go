package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/driveflow/driveflow/authflow"
	"github.com/driveflow/driveflow/internal/redact"
)

// AuthRequestMessage builds the device-code notification asking the resource
// owner to complete authorization in a browser.
func AuthRequestMessage(recipient string, grant *authflow.DeviceGrant) *Message {
	expiry := int(grant.CodeExpiry / time.Second)
	content := fmt.Sprintf(
		"<h3>Cloud storage access request</h3>"+
			"<p>An application is asking for delegated access to your storage account.</p>"+
			"<p>User code: <b>%s</b></p>"+
			"<p>Open <a href=%q>%s</a> and enter the code to approve.</p>"+
			"<p>The code expires in %d seconds. Ignore this message to refuse.</p>",
		grant.UserCode, grant.VerificationURL, grant.VerificationURL, expiry)

	return &Message{
		Recipients:  []string{recipient},
		Content:     content,
		Summary:     "Cloud storage access request",
		ContentType: ContentHTML,
		URL:         grant.VerificationURL,
	}
}

// AuthSuccessMessage builds the post-authorization confirmation. The token
// is masked; the full secret never leaves the process this way.
func AuthSuccessMessage(recipient string, token *authflow.TokenResult) *Message {
	content := "<h3>Access granted</h3>" +
		"<p>Authorization completed. The requesting application can now access the approved files.</p>"
	if token != nil {
		content += fmt.Sprintf("<p>Access token: <code>%s</code></p>", redact.Token(token.AccessToken))
	}
	return &Message{
		Recipients:  []string{recipient},
		Content:     content,
		Summary:     "Cloud storage access granted",
		ContentType: ContentHTML,
	}
}

// SendAuthRequest delivers the device-code notification.
func (s *Sender) SendAuthRequest(ctx context.Context, recipient string, grant *authflow.DeviceGrant) (*Receipt, error) {
	return s.Send(ctx, AuthRequestMessage(recipient, grant))
}

// SendAuthSuccess delivers the post-authorization confirmation.
func (s *Sender) SendAuthSuccess(ctx context.Context, recipient string, token *authflow.TokenResult) (*Receipt, error) {
	return s.Send(ctx, AuthSuccessMessage(recipient, token))
}
