package main

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fusevault/fusevault/otp"
	"github.com/fusevault/fusevault/tee/emulator"
)

func TestProvisionFields(t *testing.T) {
	peer := emulator.New(emulator.Options{})
	fields := []fieldConfig{
		{ID: 3, Hex: "deadbeef"},
		{ID: 4, Data: "device-serial"},
	}
	if err := provisionFields(peer, fields, zerolog.Nop()); err != nil {
		t.Fatalf("provisionFields: %v", err)
	}

	client, err := otp.Open(peer)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(client.Close)

	got, err := client.Read(3, 16)
	if err != nil || !bytes.Equal(got, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("field 3: got %x, %v", got, err)
	}
	got, err = client.Read(4, 32)
	if err != nil || string(got) != "device-serial" {
		t.Fatalf("field 4: got %q, %v", got, err)
	}
}

func TestProvisionFieldsSkipsWritten(t *testing.T) {
	peer := emulator.New(emulator.Options{})
	fields := []fieldConfig{{ID: 7, Data: "first"}}
	if err := provisionFields(peer, fields, zerolog.Nop()); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	// A restart with the same config must not fail or alter the field.
	fields[0].Data = "second"
	if err := provisionFields(peer, fields, zerolog.Nop()); err != nil {
		t.Fatalf("second pass: %v", err)
	}

	client, err := otp.Open(peer)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(client.Close)
	got, err := client.Read(7, 16)
	if err != nil || string(got) != "first" {
		t.Fatalf("field 7: got %q, %v", got, err)
	}
}
