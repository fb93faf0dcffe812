// Package legalid normalizes Swedish legal identifiers.
package legalid

import "strings"

// OrganizationPrefix is prepended to ten digit organization numbers to
// form the twelve digit legal id used by the mailbox service
const OrganizationPrefix = "16"

// AddPrefix turns a ten character organization number into its twelve
// character legal id form. Any other input, including empty or blank
// strings and numbers that already carry the century prefix, is returned
// unchanged.
func AddPrefix(orgNumber string) string {
	if strings.TrimSpace(orgNumber) == "" || len(orgNumber) != 10 {
		return orgNumber
	}
	return OrganizationPrefix + orgNumber
}
