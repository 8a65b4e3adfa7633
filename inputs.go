// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attrail

// UserData identifies the end user for signup and set-user-data
// operations. ID is mandatory; everything else is optional enrichment.
// Name, Email and Phone are hashed before dispatch when the PII policy
// is enabled.
type UserData struct {
	ID                 string `validate:"required"`
	Name               string
	Email              string
	Phone              string
	MixpanelDistinctID string
	AmplitudeDeviceID  string
	PosthogDistinctID  string
	UserCreatedAt      string
	IsFirstTimeUser    *bool
}

// PaymentType classifies a captured payment.
type PaymentType string

const (
	PaymentTypeFirstPayment        PaymentType = "FIRST_PAYMENT"
	PaymentTypeWalletTopup         PaymentType = "WALLET_TOPUP"
	PaymentTypeFundsWithdrawal     PaymentType = "FUNDS_WITHDRAWAL"
	PaymentTypeSubscriptionCreated PaymentType = "SUBSCRIPTION_CREATED"
	PaymentTypeSubscriptionRenewed PaymentType = "SUBSCRIPTION_RENEWED"
	PaymentTypeOneTime             PaymentType = "ONE_TIME"
	PaymentTypeRecurring           PaymentType = "RECURRING"
	PaymentTypeDefault             PaymentType = "DEFAULT"
)

// PaymentStatus describes where a payment is in its lifecycle.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "PAYMENT_INITIATED"
	PaymentCompleted PaymentStatus = "PAYMENT_COMPLETED"
	PaymentFailed    PaymentStatus = "PAYMENT_FAILED"
	PaymentCancelled PaymentStatus = "PAYMENT_CANCELLED"
)

// Payment is the input to CapturePayment. UserID is mandatory;
// PaymentID is optional but required later to remove the payment by
// id.
type Payment struct {
	PaymentID string
	UserID    string `validate:"required"`
	Amount    float64
	Type      PaymentType
	Status    PaymentStatus
}

// PaymentRemoval is the input to RemovePayment. At least one of
// PaymentID and UserID must be set.
type PaymentRemoval struct {
	PaymentID string `validate:"required_without=UserID"`
	UserID    string `validate:"required_without=PaymentID"`
}
