//go:build windows

package logger

import "golang.org/x/sys/windows/svc"

// IsService checks if the application is running as a Windows service
func IsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}

	return isService
}
