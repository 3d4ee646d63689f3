package utils

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
)

// dictionaryPatterns are the file names a data directory is expected to hold.
var dictionaryPatterns = []string{"*.dic", "*.tsv", "*.txt", "*.bin", "*.db", "*.sqlite", "dict_*.bin"}

// PathResolver resolves data and config locations relative to the running binary.
type PathResolver struct {
	executableDir string
	homeDir       string
	configDir     string
}

// NewPathResolver creates a new path resolver that determines the executable location
func NewPathResolver() (*PathResolver, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}

	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Could not determine home directory: %v", err)
		homeDir = os.TempDir()
	}

	pr := &PathResolver{
		executableDir: filepath.Dir(execPath),
		homeDir:       homeDir,
		configDir:     configDirFor(homeDir),
	}

	log.Debugf("PathResolver initialized: execDir=%s, configDir=%s", pr.executableDir, pr.configDir)
	return pr, nil
}

// configDirFor returns the appropriate config directory for the platform
func configDirFor(homeDir string) string {
	switch runtime.GOOS {
	case "linux":
		if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
			return filepath.Join(configHome, "kanaserve")
		}
		return filepath.Join(homeDir, ".config", "kanaserve")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "kanaserve")
		}
		return filepath.Join(homeDir, "AppData", "Roaming", "kanaserve")
	default:
		return filepath.Join(homeDir, ".config", "kanaserve")
	}
}

// ResolveResource finds a dictionary or weight resource.
// It tries, in order: the path as given (absolute or relative to the working
// directory), relative to the executable, and the config data directory.
// When nothing exists the input is returned unchanged so the loader can report
// the missing path.
func (pr *PathResolver) ResolveResource(userPath string) string {
	if userPath == "" || filepath.IsAbs(userPath) {
		return userPath
	}

	candidates := []string{
		userPath,
		filepath.Join(pr.executableDir, userPath),
		filepath.Join(pr.configDir, "data", userPath),
	}
	for _, path := range candidates {
		if FileExists(path) {
			log.Debugf("Resolved resource %s -> %s", userPath, path)
			return path
		}
		log.Debugf("Resource candidate not found: %s", path)
	}
	return userPath
}

// HasDictionaryFiles reports whether dir looks like a data directory.
func HasDictionaryFiles(dir string) bool {
	if !IsDir(dir) {
		return false
	}
	for _, pattern := range dictionaryPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err == nil && len(matches) > 0 {
			return true
		}
	}
	return false
}

// GetConfigPath returns the full path for a config file, falling back to a
// writable location when the platform config directory is read-only.
func (pr *PathResolver) GetConfigPath(filename string) (string, error) {
	if pr.ensureWritable(pr.configDir) {
		return filepath.Join(pr.configDir, filename), nil
	}

	fallbackDirs := []string{
		filepath.Join(pr.homeDir, ".kanaserve"),
		filepath.Join(os.TempDir(), "kanaserve"),
		pr.executableDir,
	}
	for _, dir := range fallbackDirs {
		if pr.ensureWritable(dir) {
			path := filepath.Join(dir, filename)
			log.Warnf("Using fallback config location: %s", path)
			return path, nil
		}
	}

	tempPath := filepath.Join(os.TempDir(), filename)
	log.Warnf("Using temporary config file: %s", tempPath)
	return tempPath, nil
}

// ensureWritable creates the directory if needed and tests that it is writable
func (pr *PathResolver) ensureWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Debugf("Cannot create config directory %s: %v", dir, err)
		return false
	}
	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		log.Debugf("Config directory %s is not writable: %v", dir, err)
		return false
	}
	os.Remove(testFile)
	return true
}

// GetConfigDir returns the config directory
func (pr *PathResolver) GetConfigDir() string {
	return pr.configDir
}
