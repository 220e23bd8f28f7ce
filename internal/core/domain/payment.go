package domain

import "fmt"

// GatewayAction is the order transition bound to a payment gateway response code.
type GatewayAction int

const (
	GatewayActionAccept GatewayAction = iota + 1
	GatewayActionFail
	GatewayActionHold
)

func (a GatewayAction) String() string {
	switch a {
	case GatewayActionAccept:
		return "accept"
	case GatewayActionFail:
		return "fail"
	case GatewayActionHold:
		return "hold"
	}
	return "unknown"
}

type GatewayStatus struct {
	Code        string
	Action      GatewayAction
	Description string
}

// gatewayStatuses is the closed set of VNPay vnp_ResponseCode values.
var gatewayStatuses = map[string]GatewayStatus{
	"00": {"00", GatewayActionAccept, "transaction successful"},
	"07": {"07", GatewayActionHold, "amount debited, transaction suspected of fraud"},
	"09": {"09", GatewayActionFail, "card or account not registered for internet banking"},
	"10": {"10", GatewayActionFail, "card or account verification failed more than 3 times"},
	"11": {"11", GatewayActionFail, "payment window expired"},
	"12": {"12", GatewayActionFail, "card or account is locked"},
	"13": {"13", GatewayActionFail, "wrong transaction authentication password"},
	"24": {"24", GatewayActionFail, "customer cancelled the transaction"},
	"51": {"51", GatewayActionFail, "insufficient account balance"},
	"65": {"65", GatewayActionFail, "daily transaction limit exceeded"},
	"75": {"75", GatewayActionFail, "bank under maintenance"},
	"79": {"79", GatewayActionFail, "wrong payment password too many times"},
	"99": {"99", GatewayActionFail, "other error"},
}

// LookupGatewayStatus resolves a response code, failing with
// ErrUnrecognizedStatusCode for anything outside the known set.
func LookupGatewayStatus(code string) (GatewayStatus, error) {
	status, ok := gatewayStatuses[code]
	if !ok {
		return GatewayStatus{}, fmt.Errorf("%w: %q", ErrUnrecognizedStatusCode, code)
	}
	return status, nil
}

// PaymentCallback is the gateway redirect after the customer leaves the payment page.
type PaymentCallback struct {
	OrderRef      string
	ResponseCode  string
	Amount        int64
	TransactionNo string
	BankCode      string
}
