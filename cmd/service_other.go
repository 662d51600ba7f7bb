//go:build !windows

package main

import "errors"

func runAsService(string, *AppConfig) error {
	return errors.New("service mode is only available on windows")
}

func isWindowsService() (bool, error) {
	return false, nil
}
