// Package common holds the result types shared between the detection
// path and its callers.
package common

// SignatureDescriptor is the read-only result of scanning a PDF for
// signature and LTV markers. It reports presence only; no
// cryptographic property is verified.
type SignatureDescriptor struct {
	HasSignature bool   `json:"hasSig"`
	HasLTV       bool   `json:"hasLTV"`
	Signer       string `json:"signer,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Location     string `json:"location,omitempty"`
	Date         string `json:"date,omitempty"`
}
