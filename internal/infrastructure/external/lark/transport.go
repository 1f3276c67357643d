package lark

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	larkApproval "github.com/larksuite/oapi-sdk-go/v3/service/approval/v4"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
)

// Transport delivers wizard records as Lark approval instances
type Transport struct {
	sdk    *SDKClient
	logger *zap.Logger
}

// NewTransport creates a Lark approval transport
func NewTransport(sdk *SDKClient, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		sdk:    sdk,
		logger: logger,
	}
}

// Name identifies the transport in logs
func (t *Transport) Name() string {
	return "lark"
}

// BuildForm renders the approval form value: a single textarea widget
// holding the record
func BuildForm(widgetID string, record []byte) (string, error) {
	form, err := sjson.Set("[]", "0.id", widgetID)
	if err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if form, err = sjson.Set(form, "0.type", "textarea"); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if form, err = sjson.Set(form, "0.value", string(record)); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	return form, nil
}

// InstanceUUID is the idempotency key sent with an approval instance. It is
// derived from the stamped record so a resent attempt maps to the same instance.
func InstanceUUID(flow string, record []byte) string {
	name := make([]byte, 0, len(flow)+1+len(record))
	name = append(name, flow...)
	name = append(name, 0)
	name = append(name, record...)
	return uuid.NewSHA1(uuid.NameSpaceOID, name).String()
}

// Deliver creates an approval instance and returns its instance code
func (t *Transport) Deliver(ctx context.Context, flow string, record []byte) (string, error) {
	approvalCode, ok := t.sdk.ApprovalCode(flow)
	if !ok {
		return "", fmt.Errorf("%w: no approval code configured for flow %q", port.ErrTransportRejected, flow)
	}

	form, err := BuildForm(t.sdk.cfg.FormWidgetID, record)
	if err != nil {
		return "", err
	}

	req := larkApproval.NewCreateInstanceReqBuilder().
		InstanceCreate(larkApproval.NewInstanceCreateBuilder().
			ApprovalCode(approvalCode).
			OpenId(t.sdk.cfg.SubmitterOpenID).
			Form(form).
			Uuid(InstanceUUID(flow, record)).
			Build()).
		Build()

	resp, err := t.sdk.client.Approval.Instance.Create(ctx, req)
	if err != nil {
		t.logger.Error("Failed to create approval instance",
			zap.String("flow", flow),
			zap.String("approval_code", approvalCode),
			zap.Error(err))
		return "", fmt.Errorf("failed to create instance: %w", err)
	}

	if !resp.Success() {
		t.logger.Error("API returned failure",
			zap.String("flow", flow),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("%w: code=%d, msg=%s", port.ErrTransportRejected, resp.Code, resp.Msg)
	}

	instanceCode := ""
	if resp.Data != nil && resp.Data.InstanceCode != nil {
		instanceCode = *resp.Data.InstanceCode
	}

	t.logger.Info("Approval instance created",
		zap.String("flow", flow),
		zap.String("instance_code", instanceCode))
	return instanceCode, nil
}

var _ port.SubmissionTransport = (*Transport)(nil)
