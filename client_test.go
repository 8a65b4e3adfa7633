// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attrail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attrail/attrail-go/pkg/deeplink"
	"github.com/attrail/attrail-go/pkg/logging"
	"github.com/attrail/attrail-go/pkg/pii"
	"github.com/attrail/attrail-go/pkg/transport"
)

// stubAPI counts every dispatch and records the last request per
// endpoint. Any method whose fail flag is set returns failErr.
type stubAPI struct {
	calls map[string]int

	initResp    *transport.InitResponse
	triggerResp *transport.TriggerResponse
	profileResp *transport.BaseResponse

	lastInit     transport.InitRequest
	lastTrigger  transport.TriggerRequest
	lastUserData transport.SetUserDataRequest
	lastPayment  transport.CapturePaymentRequest
	lastRemoval  transport.RemovePaymentRequest
	lastEvent    transport.TrackEventRequest
	lastDeeplink transport.DeeplinkTriggeredRequest
	lastPush     transport.UpdatePushTokenRequest
	lastLog      transport.LogRequest

	lastProfileToken     string
	lastProfileInstallID string

	failDeeplink bool
}

var errStub = errors.New("stub transport failure")

func newStubAPI() *stubAPI {
	return &stubAPI{
		calls:       map[string]int{},
		initResp:    &transport.InitResponse{},
		triggerResp: &transport.TriggerResponse{},
		profileResp: &transport.BaseResponse{Success: true},
	}
}

func (s *stubAPI) total() int {
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *stubAPI) Init(_ context.Context, req transport.InitRequest) (*transport.InitResponse, error) {
	s.calls["init"]++
	s.lastInit = req
	return s.initResp, nil
}

func (s *stubAPI) Trigger(_ context.Context, req transport.TriggerRequest) (*transport.TriggerResponse, error) {
	s.calls["trigger"]++
	s.lastTrigger = req
	return s.triggerResp, nil
}

func (s *stubAPI) SetUserData(_ context.Context, req transport.SetUserDataRequest) error {
	s.calls["set-user-data"]++
	s.lastUserData = req
	return nil
}

func (s *stubAPI) CapturePayment(_ context.Context, req transport.CapturePaymentRequest) error {
	s.calls["capture-payment"]++
	s.lastPayment = req
	return nil
}

func (s *stubAPI) RemovePayment(_ context.Context, req transport.RemovePaymentRequest) error {
	s.calls["remove-payment"]++
	s.lastRemoval = req
	return nil
}

func (s *stubAPI) TrackEvent(_ context.Context, req transport.TrackEventRequest) error {
	s.calls["capture-event"]++
	s.lastEvent = req
	return nil
}

func (s *stubAPI) DeeplinkTriggered(_ context.Context, req transport.DeeplinkTriggeredRequest) error {
	s.calls["deeplink-triggered"]++
	s.lastDeeplink = req
	if s.failDeeplink {
		return errStub
	}
	return nil
}

func (s *stubAPI) UpdatePushToken(_ context.Context, req transport.UpdatePushTokenRequest) error {
	s.calls["update-push-token"]++
	s.lastPush = req
	return nil
}

func (s *stubAPI) Log(_ context.Context, req transport.LogRequest) error {
	s.calls["log"]++
	s.lastLog = req
	return nil
}

func (s *stubAPI) GetProfile(_ context.Context, token, installInstanceID string) (*transport.BaseResponse, error) {
	s.calls["get-profile"]++
	s.lastProfileToken = token
	s.lastProfileInstallID = installInstanceID
	return s.profileResp, nil
}

func newTestClient(t *testing.T) (*Client, *stubAPI) {
	t.Helper()
	c, err := NewClient(Config{
		InMemory: true,
		Logger:   logging.New(logging.Config{Quiet: true}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	stub := newStubAPI()
	c.api = stub
	return c, stub
}

func initClient(t *testing.T, c *Client) {
	t.Helper()
	_, err := c.Init(context.Background(), "tok-test", "", "")
	require.NoError(t, err)
}

func TestOperationsFailFastBeforeInit(t *testing.T) {
	c, stub := newTestClient(t)
	ctx := context.Background()

	_, err := c.Signup(ctx, UserData{ID: "u-1"}, nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, c.TrackEvent(ctx, "opened", nil), ErrNotInitialized)
	assert.ErrorIs(t, c.CapturePayment(ctx, Payment{UserID: "u-1"}), ErrNotInitialized)
	assert.ErrorIs(t, c.RemovePayment(ctx, PaymentRemoval{PaymentID: "p-1"}), ErrNotInitialized)
	assert.ErrorIs(t, c.SetUserData(ctx, UserData{ID: "u-1"}), ErrNotInitialized)
	assert.ErrorIs(t, c.TriggerDeeplink(ctx), ErrNotInitialized)
	assert.ErrorIs(t, c.UpdatePushToken(ctx, "fcm-1"), ErrNotInitialized)
	assert.ErrorIs(t, c.Log(ctx, "error", "boom", nil), ErrNotInitialized)
	_, err = c.GetProfile(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)

	// Fail fast means zero network traffic.
	assert.Zero(t, stub.total())
}

func TestInitRequiresToken(t *testing.T) {
	c, stub := newTestClient(t)

	_, err := c.Init(context.Background(), "", "", "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Zero(t, stub.total())
}

func TestInitDispatchesIdentityAndVersions(t *testing.T) {
	c, stub := newTestClient(t)

	_, err := c.Init(context.Background(), "tok-test", "https://l.example.com/c", "organic")
	require.NoError(t, err)

	require.Equal(t, 1, stub.calls["init"])
	assert.Equal(t, "tok-test", stub.lastInit.Token)
	assert.Equal(t, sdkVersion, stub.lastInit.PackageVersion)
	assert.Equal(t, "ANDROID", stub.lastInit.Platform)
	assert.Equal(t, "https://l.example.com/c", stub.lastInit.Link)
	assert.Equal(t, "organic", stub.lastInit.Source)
	assert.NotEmpty(t, stub.lastInit.InstallInstanceID)
}

func TestInstallIDStableAcrossOperations(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	require.NoError(t, c.TrackEvent(context.Background(), "opened", nil))
	require.NoError(t, c.TrackEvent(context.Background(), "closed", nil))

	assert.Equal(t, stub.lastInit.InstallInstanceID, stub.lastEvent.InstallInstanceID)
}

func TestInitParksDeferredDeeplink(t *testing.T) {
	c, stub := newTestClient(t)
	stub.initResp = &transport.InitResponse{
		GeneralResponse: transport.GeneralResponse{Deeplink: "https://app.example.com/offer/7"},
	}
	initClient(t, c)

	url, err := c.deeplinks.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/offer/7", url)
}

func TestTriggerDeeplinkOpensAndConfirms(t *testing.T) {
	var opened string
	c, err := NewClient(Config{
		InMemory: true,
		Logger:   logging.New(logging.Config{Quiet: true}),
		Opener: deeplink.OpenerFunc(func(_ context.Context, url string) (bool, error) {
			opened = url
			return true, nil
		}),
	})
	require.NoError(t, err)
	defer c.Close()
	stub := newStubAPI()
	stub.initResp = &transport.InitResponse{
		GeneralResponse: transport.GeneralResponse{Deeplink: "https://app.example.com/offer/7"},
	}
	c.api = stub
	initClient(t, c)

	require.NoError(t, c.TriggerDeeplink(context.Background()))
	assert.Equal(t, "https://app.example.com/offer/7", opened)
	assert.Equal(t, 1, stub.calls["deeplink-triggered"])
	assert.Equal(t, "tok-test", stub.lastDeeplink.Token)
}

func TestTriggerDeeplinkWithoutStoredLink(t *testing.T) {
	c, _ := newTestClient(t)
	initClient(t, c)

	err := c.TriggerDeeplink(context.Background())
	assert.ErrorIs(t, err, deeplink.ErrNoDeeplink)
}

func TestTriggerDeeplinkRetriesAfterConfirmFailure(t *testing.T) {
	c, stub := newTestClient(t)
	stub.initResp = &transport.InitResponse{
		GeneralResponse: transport.GeneralResponse{Deeplink: "https://app.example.com/a"},
	}
	initClient(t, c)

	stub.failDeeplink = true
	require.Error(t, c.TriggerDeeplink(context.Background()))

	stub.failDeeplink = false
	require.NoError(t, c.TriggerDeeplink(context.Background()))
	assert.Equal(t, 2, stub.calls["deeplink-triggered"])
}

func TestSignupSendsSignupEventWithMergedData(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	_, err := c.Signup(context.Background(), UserData{ID: "u-1", Email: "a@b.com"},
		map[string]any{"plan": "pro"})
	require.NoError(t, err)

	require.Equal(t, 1, stub.calls["trigger"])
	assert.Equal(t, "SIGNUP", stub.lastTrigger.Event)
	assert.Equal(t, "u-1", stub.lastTrigger.UserData.ID)
	assert.Equal(t, "pro", stub.lastTrigger.Data["plan"])
	assert.Contains(t, stub.lastTrigger.Data, "device_data")
}

func TestSignupRequiresUserID(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	_, err := c.Signup(context.Background(), UserData{Email: "a@b.com"}, nil)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "ID", verr.Field)
	assert.Zero(t, stub.calls["trigger"])
}

func TestSignupHashesUserDataWhenEnabled(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)
	ctx := context.Background()

	require.NoError(t, c.EnablePIIHashing(true))
	_, err := c.Signup(ctx, UserData{ID: "u-1", Name: "Alice", Email: "a@b.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, pii.Hash("Alice"), stub.lastTrigger.UserData.Name)
	assert.Equal(t, pii.Hash("a@b.com"), stub.lastTrigger.UserData.Email)

	require.NoError(t, c.EnablePIIHashing(false))
	_, err = c.Signup(ctx, UserData{ID: "u-1", Name: "Alice", Email: "a@b.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Alice", stub.lastTrigger.UserData.Name)
	assert.Equal(t, "a@b.com", stub.lastTrigger.UserData.Email)
}

func TestHashingPolicyAppliedToUserData(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	require.NoError(t, c.EnablePIIHashing(true))
	require.True(t, c.PIIHashingEnabled())

	require.NoError(t, c.SetUserData(context.Background(), UserData{
		ID:    "u-1",
		Name:  "Alice",
		Email: "a@b.com",
		Phone: "+15555550123",
	}))

	sent := stub.lastUserData.UserData
	assert.Equal(t, "u-1", sent.ID, "id is never hashed")
	assert.Equal(t, pii.Hash("Alice"), sent.Name)
	assert.Equal(t, pii.Hash("a@b.com"), sent.Email)
	assert.Equal(t, pii.Hash("+15555550123"), sent.Phone)
}

func TestHashingPolicyDisabledPassesThrough(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	require.NoError(t, c.SetUserData(context.Background(), UserData{
		ID:    "u-1",
		Name:  "Alice",
		Email: "a@b.com",
	}))

	sent := stub.lastUserData.UserData
	assert.Equal(t, "Alice", sent.Name)
	assert.Equal(t, "a@b.com", sent.Email)
	assert.Empty(t, sent.Phone, "absent field stays absent, not a hash of empty")
}

func TestTrackEventRequiresName(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	err := c.TrackEvent(context.Background(), "", map[string]any{"k": "v"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Zero(t, stub.calls["capture-event"])
}

func TestTrackEventDispatch(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	require.NoError(t, c.TrackEvent(context.Background(), "checkout_opened",
		map[string]any{"cart_size": 3}))

	assert.Equal(t, "checkout_opened", stub.lastEvent.EventName)
	assert.Equal(t, 3, stub.lastEvent.EventData["cart_size"])
	assert.Equal(t, "ANDROID", stub.lastEvent.Platform)
}

func TestCapturePayment(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	require.NoError(t, c.CapturePayment(context.Background(), Payment{
		PaymentID: "p-1",
		UserID:    "u-1",
		Amount:    49.99,
		Type:      PaymentTypeSubscriptionCreated,
		Status:    PaymentCompleted,
	}))

	assert.Equal(t, "p-1", stub.lastPayment.PaymentID)
	assert.Equal(t, 49.99, stub.lastPayment.Amount)
	assert.Equal(t, "SUBSCRIPTION_CREATED", stub.lastPayment.Type)
	assert.Equal(t, "PAYMENT_COMPLETED", stub.lastPayment.Status)
	assert.Contains(t, stub.lastPayment.Data, "device_data")
}

func TestCapturePaymentRequiresUserID(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	err := c.CapturePayment(context.Background(), Payment{Amount: 1})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Zero(t, stub.calls["capture-payment"])
}

func TestRemovePaymentRequiresIdentifier(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)
	ctx := context.Background()

	err := c.RemovePayment(ctx, PaymentRemoval{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Zero(t, stub.calls["remove-payment"])

	require.NoError(t, c.RemovePayment(ctx, PaymentRemoval{PaymentID: "p-1"}))
	require.NoError(t, c.RemovePayment(ctx, PaymentRemoval{UserID: "u-1"}))
	assert.Equal(t, 2, stub.calls["remove-payment"])
}

func TestUpdatePushToken(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	require.NoError(t, c.UpdatePushToken(context.Background(), "fcm-abc"))
	assert.Equal(t, "fcm-abc", stub.lastPush.PushToken)

	err := c.UpdatePushToken(context.Background(), "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestLogDefaultsLevel(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	require.NoError(t, c.Log(context.Background(), "", "something broke",
		map[string]any{"stage": "checkout"}))
	assert.Equal(t, "error", stub.lastLog.Level)
	assert.Equal(t, "something broke", stub.lastLog.Message)
	assert.Equal(t, "checkout", stub.lastLog.Meta["stage"])
}

func TestGetProfile(t *testing.T) {
	c, stub := newTestClient(t)
	initClient(t, c)

	out, err := c.GetProfile(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, stub.calls["get-profile"])
	assert.Equal(t, "tok-test", stub.lastProfileToken)
	assert.Equal(t, stub.lastInit.InstallInstanceID, stub.lastProfileInstallID)
}

func TestHashingSettingSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	log := logging.New(logging.Config{Quiet: true})

	c, err := NewClient(Config{DataDir: dir, Logger: log})
	require.NoError(t, err)
	require.NoError(t, c.EnablePIIHashing(true))
	require.NoError(t, c.Close())

	c, err = NewClient(Config{DataDir: dir, Logger: log})
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, c.PIIHashingEnabled())
}

func TestNewClientRequiresDataDir(t *testing.T) {
	_, err := NewClient(Config{Logger: logging.New(logging.Config{Quiet: true})})
	require.Error(t, err)
}

func TestCustomPlatformTag(t *testing.T) {
	c, err := NewClient(Config{
		InMemory: true,
		Platform: "ANDROID_TV",
		Logger:   logging.New(logging.Config{Quiet: true}),
	})
	require.NoError(t, err)
	defer c.Close()
	stub := newStubAPI()
	c.api = stub
	initClient(t, c)

	assert.Equal(t, "ANDROID_TV", stub.lastInit.Platform)
}
