package ctl

// Reload tells the daemon to re-read its config file from disk.
func Reload(baseURL string, jsonOutput bool) error {
	return control(baseURL, "/api/reload", nil, "RELOADED", jsonOutput)
}
