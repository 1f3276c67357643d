package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client *lark.Client
	cfg    Config
	logger *zap.Logger
}

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// ApprovalCodes maps a wizard flow name to its approval definition code
	ApprovalCodes map[string]string
	// FormWidgetID is the textarea widget that receives the record JSON
	FormWidgetID string
	// SubmitterOpenID starts instances on behalf of this user
	SubmitterOpenID string
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &SDKClient{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}

// ApprovalCode returns the approval definition code for flow
func (c *SDKClient) ApprovalCode(flow string) (string, bool) {
	code, ok := c.cfg.ApprovalCodes[flow]
	return code, ok && code != ""
}
