package models

import (
	"strings"
	"time"

	"campuswallet/backend/libs/money"
)

// Student is a card holder with a wallet.
type Student struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	RollNo        string       `json:"rollNo"`
	Email         string       `json:"email,omitempty"`
	RFIDUID       string       `json:"rfid_uid"`
	LegacyRFID    string       `json:"rfidNumber,omitempty"`
	WalletBalance money.Amount `json:"walletBalance"`
	Modules       []Module     `json:"modules"`
	Active        bool         `json:"active"`
	PasswordHash  string       `json:"-"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// HasModule reports whether the student is enrolled in module m.
func (s *Student) HasModule(m Module) bool {
	for _, enrolled := range s.Modules {
		if enrolled == m {
			return true
		}
	}
	return false
}

// StudentSummary is the slice of a student embedded in transaction listings.
type StudentSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	RollNo  string `json:"rollNo"`
	RFIDUID string `json:"rfid_uid"`
}

// Summary returns the embedded form of s.
func (s *Student) Summary() *StudentSummary {
	return &StudentSummary{ID: s.ID, Name: s.Name, RollNo: s.RollNo, RFIDUID: s.RFIDUID}
}

// JoinModules encodes modules for storage.
func JoinModules(modules []Module) string {
	parts := make([]string, 0, len(modules))
	for _, m := range modules {
		parts = append(parts, string(m))
	}
	return strings.Join(parts, ",")
}

// SplitModules decodes the stored module list.
func SplitModules(raw string) []Module {
	modules := []Module{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			modules = append(modules, Module(part))
		}
	}
	return modules
}
