package service

import "errors"

var (
	// ErrAlreadyProcessed means the order was already in a terminal status
	// when a transition was attempted. The acting channel reports this as
	// "already processed", never as a generic failure.
	ErrAlreadyProcessed = errors.New("order already processed")

	// ErrProvisionFailed means the VPN panel call failed; the order stays in
	// its prior status with vpn_provision_status=failed and can be retried.
	ErrProvisionFailed = errors.New("vpn provisioning failed")

	ErrValidation = errors.New("invalid order request")
)
