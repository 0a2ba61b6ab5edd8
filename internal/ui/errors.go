package ui

import (
	"fmt"

	"github.com/five82/olhovivo/internal/sptrans"
)

// errorText turns a client error into the sentence shown to the user.
func errorText(err error) string {
	switch sptrans.KindOf(err) {
	case sptrans.KindOK:
		return ""
	case sptrans.KindAuth:
		return "Authentication failed: check your Olho Vivo API token"
	case sptrans.KindShape:
		return "Unexpected response from Olho Vivo"
	default:
		if status := sptrans.StatusOf(err); status > 0 {
			return fmt.Sprintf("Olho Vivo service error (HTTP %d)", status)
		}
		return "Olho Vivo is unreachable"
	}
}

// emptyText is shown when a request succeeded with nothing to list.
func emptyText(what string) string {
	return "No " + what + " found"
}
