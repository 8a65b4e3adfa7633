// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	attrail "github.com/attrail/attrail-go"
)

var (
	rootCmd = &cobra.Command{
		Use:   "attrailctl",
		Short: "A CLI to exercise the Attrail attribution SDK",
		Long: `attrailctl drives the Attrail SDK from the command line:
initialize an install, dispatch events, and replay deferred deep links,
using the same durable identity store the SDK uses in-app.`,
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Register this installation with the attribution service",
		Run:   runInit,
	}
	installLink   string
	installSource string

	trackCmd = &cobra.Command{
		Use:   "track [event-name]",
		Short: "Dispatch a custom named event",
		Args:  cobra.ExactArgs(1),
		Run:   runTrack,
	}
	eventDataJSON string

	signupCmd = &cobra.Command{
		Use:   "signup [user-id]",
		Short: "Dispatch the SIGNUP lifecycle event",
		Args:  cobra.ExactArgs(1),
		Run:   runSignup,
	}
	signupName  string
	signupEmail string
	signupPhone string

	deeplinkCmd = &cobra.Command{
		Use:   "deeplink",
		Short: "Manage the deferred deep link",
	}
	deeplinkTriggerCmd = &cobra.Command{
		Use:   "trigger",
		Short: "Replay the parked deferred deep link and confirm it upstream",
		Run:   runDeeplinkTrigger,
	}

	profileCmd = &cobra.Command{
		Use:   "profile",
		Short: "Fetch the attribution profile for this install",
		Run:   runProfile,
	}

	hashCmd = &cobra.Command{
		Use:   "hash [on|off]",
		Short: "Toggle SHA-256 hashing of user name, email and phone",
		Args:  cobra.ExactArgs(1),
		Run:   runHash,
	}
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&installLink, "link", "", "Install link to attribute (optional)")
	initCmd.Flags().StringVar(&installSource, "source", "", "Install source tag (optional)")

	rootCmd.AddCommand(trackCmd)
	trackCmd.Flags().StringVar(&eventDataJSON, "data", "", "Event data as a JSON object")

	rootCmd.AddCommand(signupCmd)
	signupCmd.Flags().StringVar(&signupName, "name", "", "User name")
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "User email")
	signupCmd.Flags().StringVar(&signupPhone, "phone", "", "User phone")

	rootCmd.AddCommand(deeplinkCmd)
	deeplinkCmd.AddCommand(deeplinkTriggerCmd)

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(hashCmd)
}

// buildClient wires an SDK client from the loaded config. The caller
// owns the Close.
func buildClient() *attrail.Client {
	client, err := attrail.NewClient(attrail.Config{
		BaseURL:  config.BaseURL,
		DataDir:  config.DataDir,
		Platform: config.Platform,
	})
	if err != nil {
		log.Fatalf("Error creating client: %v", err)
	}
	return client
}

func dispatchContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 45*time.Second)
}

func runInit(cmd *cobra.Command, args []string) {
	client := buildClient()
	defer client.Close()
	ctx, cancel := dispatchContext()
	defer cancel()

	resp, err := client.Init(ctx, config.Token, installLink, installSource)
	if err != nil {
		log.Fatalf("Init failed: %v", err)
	}

	installID, _ := client.InstallInstanceID()
	fmt.Printf("Initialized install %s\n", installID)
	if resp.Deeplink != "" {
		fmt.Printf("Deferred deeplink parked: %s\n", resp.Deeplink)
	}
	if resp.CampaignData != nil {
		fmt.Printf("Attributed campaign: %s (%s)\n", resp.CampaignData.Name, resp.CampaignData.Type)
	}
}

func runTrack(cmd *cobra.Command, args []string) {
	var data map[string]any
	if eventDataJSON != "" {
		if err := json.Unmarshal([]byte(eventDataJSON), &data); err != nil {
			log.Fatalf("Invalid --data JSON: %v", err)
		}
	}

	client := buildClient()
	defer client.Close()
	ctx, cancel := dispatchContext()
	defer cancel()

	if err := client.TrackEvent(ctx, args[0], data); err != nil {
		log.Fatalf("Track failed: %v", err)
	}
	fmt.Printf("Event %q dispatched\n", args[0])
}

func runSignup(cmd *cobra.Command, args []string) {
	client := buildClient()
	defer client.Close()
	ctx, cancel := dispatchContext()
	defer cancel()

	_, err := client.Signup(ctx, attrail.UserData{
		ID:    args[0],
		Name:  signupName,
		Email: signupEmail,
		Phone: signupPhone,
	}, nil)
	if err != nil {
		log.Fatalf("Signup failed: %v", err)
	}
	fmt.Printf("Signup dispatched for user %s\n", args[0])
}

func runDeeplinkTrigger(cmd *cobra.Command, args []string) {
	client := buildClient()
	defer client.Close()
	ctx, cancel := dispatchContext()
	defer cancel()

	if err := client.TriggerDeeplink(ctx); err != nil {
		log.Fatalf("Deeplink trigger failed: %v", err)
	}
	fmt.Println("Deferred deeplink triggered and confirmed")
}

func runProfile(cmd *cobra.Command, args []string) {
	client := buildClient()
	defer client.Close()
	ctx, cancel := dispatchContext()
	defer cancel()

	resp, err := client.GetProfile(ctx)
	if err != nil {
		log.Fatalf("Profile fetch failed: %v", err)
	}
	if len(resp.Data) > 0 {
		fmt.Println(string(resp.Data))
		return
	}
	fmt.Printf("Profile fetch succeeded (success=%v)\n", resp.Success)
}

func runHash(cmd *cobra.Command, args []string) {
	var enabled bool
	switch args[0] {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		log.Fatalf("Expected on or off, got %q", args[0])
	}

	client := buildClient()
	defer client.Close()

	if err := client.EnablePIIHashing(enabled); err != nil {
		log.Fatalf("Failed to update hashing policy: %v", err)
	}
	fmt.Printf("PII hashing set to %v\n", enabled)
}
