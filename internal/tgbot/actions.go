package tgbot

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback payloads are decoded once at the boundary into a tagged
// Action and dispatched by type switch, instead of string-splitting in
// every handler.
type Action interface {
	isAction()
}

// BeginRegistration is the first-time user's confirmation step.
type BeginRegistration struct{}

// SelectTier is a user picking a tournament from the fee menu.
type SelectTier struct {
	Tier int
	User int64
}

// Approve is an admin assigning the user a slot in the tier.
type Approve struct {
	Tier int
	User int64
}

// Decline is an admin rejecting the user's registration.
type Decline struct {
	User int64
}

// PaymentSecurity shows the payment-security info screen.
type PaymentSecurity struct{}

// BackToPayment leaves the info screen.
type BackToPayment struct{}

func (BeginRegistration) isAction() {}
func (SelectTier) isAction()        {}
func (Approve) isAction()           {}
func (Decline) isAction()           {}
func (PaymentSecurity) isAction()   {}
func (BackToPayment) isAction()     {}

func decodeAction(data string) (Action, error) {
	switch data {
	case "start_registration":
		return BeginRegistration{}, nil
	case "payment_security":
		return PaymentSecurity{}, nil
	case "back_to_payment":
		return BackToPayment{}, nil
	}

	parts := strings.Split(data, "_")
	switch parts[0] {
	case "register":
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed register callback %q", data)
		}
		tier, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("bad tier in callback %q", data)
		}
		user, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad user in callback %q", data)
		}
		return SelectTier{Tier: tier, User: user}, nil
	case "approve":
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed approve callback %q", data)
		}
		tier, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("bad tier in callback %q", data)
		}
		user, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad user in callback %q", data)
		}
		return Approve{Tier: tier, User: user}, nil
	case "decline":
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed decline callback %q", data)
		}
		user, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad user in callback %q", data)
		}
		return Decline{User: user}, nil
	}
	return nil, fmt.Errorf("unknown callback %q", data)
}

func encodeSelectTier(tier int, user int64) string {
	return fmt.Sprintf("register_%d_%d", tier, user)
}

func encodeApprove(tier int, user int64) string {
	return fmt.Sprintf("approve_%d_%d", tier, user)
}

func encodeDecline(user int64) string {
	return fmt.Sprintf("decline_%d", user)
}
