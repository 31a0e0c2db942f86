package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestRotatingLogger(t *testing.T) {
	tempDir := t.TempDir()

	rl := NewRotatingLogger(tempDir, 1)

	rl.mu.Lock()
	err := rl.doRotate(getWeekKey(time.Now()))
	rl.mu.Unlock()
	if err != nil {
		t.Fatalf("Failed to rotate: %v", err)
	}

	currentWeek := getWeekKey(time.Now())
	expectedFileName := filepath.Join(tempDir, "clinic-"+currentWeek+".log")
	if _, statErr := os.Stat(expectedFileName); os.IsNotExist(statErr) {
		t.Errorf("Expected log file %s was not created", expectedFileName)
	}

	testMessage := "Test log message"
	_, err = rl.Write([]byte(testMessage))
	if err != nil {
		t.Fatalf("Failed to write to log: %v", err)
	}

	content, err := os.ReadFile(expectedFileName)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), testMessage) {
		t.Errorf("Log file does not contain test message: %s", string(content))
	}

	if err := rl.cleanupOldLogs(); err != nil {
		t.Fatalf("Failed to cleanup old logs: %v", err)
	}

	if err := rl.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}
}

func TestGetWeekKey(t *testing.T) {
	testTime := time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)
	weekKey := getWeekKey(testTime)

	expected := "2025-W41"
	if weekKey != expected {
		t.Errorf("Expected week key %s, got %s", expected, weekKey)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	tempDir := t.TempDir()

	rl := NewRotatingLogger(tempDir, 1)

	oldFile := filepath.Join(tempDir, "clinic-2025-W30.log")
	newFile := filepath.Join(tempDir, "clinic-"+getWeekKey(time.Now())+".log")

	if err := os.WriteFile(oldFile, []byte("Old log content"), 0666); err != nil {
		t.Fatalf("Failed to create old log file: %v", err)
	}

	threeWeeksAgo := time.Now().AddDate(0, 0, -21)
	if err := os.Chtimes(oldFile, threeWeeksAgo, threeWeeksAgo); err != nil {
		t.Fatalf("Failed to set old file modification time: %v", err)
	}

	if err := os.WriteFile(newFile, []byte("New log content"), 0666); err != nil {
		t.Fatalf("Failed to create new log file: %v", err)
	}

	if err := rl.cleanupOldLogs(); err != nil {
		t.Fatalf("Failed to cleanup old logs: %v", err)
	}

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Errorf("Old log file %s was not deleted", oldFile)
	}

	if _, err := os.Stat(newFile); os.IsNotExist(err) {
		t.Errorf("New log file %s was incorrectly deleted", newFile)
	}
}

func TestRotatingLoggerWithSizeLimit(t *testing.T) {
	tempDir := t.TempDir()

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 100)

	err := rl.doRotate(getWeekKey(time.Now()))
	if err != nil {
		t.Fatalf("Failed to rotate: %v", err)
	}

	_, err = rl.Write([]byte("Small message"))
	if err != nil {
		t.Fatalf("Failed to write small message: %v", err)
	}

	largeMessage := strings.Repeat("This is a very long log message that should trigger rotation. ", 10)
	_, err = rl.Write([]byte(largeMessage))
	if err != nil {
		t.Fatalf("Failed to write large message: %v", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read log directory: %v", err)
	}

	logFiles := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "clinic-") && strings.HasSuffix(entry.Name(), ".log") {
			logFiles++
		}
	}

	if logFiles < 2 {
		t.Errorf("Expected at least 2 log files due to size rotation, got %d", logFiles)
	}

	hasNumberedFile := false
	numberedPattern := regexp.MustCompile(`_\d{2}\.log$`)
	for _, entry := range entries {
		if strings.Contains(entry.Name(), "_01.") || strings.Contains(entry.Name(), "_02.") {
			hasNumberedFile = true
			if !numberedPattern.MatchString(entry.Name()) {
				t.Errorf("Numbered file has incorrect format: %s", entry.Name())
			}
		}
	}

	if !hasNumberedFile {
		t.Error("Expected at least one numbered file due to large write")
	}

	if err := rl.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}
}

func TestRotatingLoggerErrorCases(t *testing.T) {
	invalidDir := "/invalid/directory/that/does/not/exist"
	rl := NewRotatingLogger(invalidDir, 1)

	if err := rl.doRotate(getWeekKey(time.Now())); err == nil {
		t.Error("Expected error when rotating with invalid directory, got nil")
	}

	if _, err := rl.Write([]byte("test message")); err == nil {
		t.Error("Expected error when writing with invalid directory, got nil")
	}

	if err := rl.Close(); err != nil {
		t.Errorf("Unexpected error when closing logger with invalid directory: %v", err)
	}
}

func TestRotatingLoggerConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()

	rl := NewRotatingLogger(tempDir, 1)
	defer func() { _ = rl.Close() }()

	err := rl.doRotate(getWeekKey(time.Now()))
	if err != nil {
		t.Fatalf("Failed to rotate: %v", err)
	}

	const numGoroutines = 10
	const numWrites = 5

	done := make(chan bool, numGoroutines)

	for i := range numGoroutines {
		go func(id int) {
			for j := range numWrites {
				message := fmt.Sprintf("Goroutine %d, Write %d", id, j)
				if _, writeErr := rl.Write([]byte(message)); writeErr != nil {
					t.Errorf("Concurrent write failed: %v", writeErr)
				}
			}
			done <- true
		}(i)
	}

	for range numGoroutines {
		<-done
	}

	currentWeek := getWeekKey(time.Now())
	expectedFileName := filepath.Join(tempDir, "clinic-"+currentWeek+".log")
	content, err := os.ReadFile(expectedFileName)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if len(content) == 0 {
		t.Error("Log file is empty after concurrent writes")
	}
}

func TestRotatingLoggerExistingFileAtSizeLimit(t *testing.T) {
	tempDir := t.TempDir()

	maxFileSize := int64(1024)
	currentWeek := getWeekKey(time.Now())
	baseFilePath := filepath.Join(tempDir, fmt.Sprintf("clinic-%s.log", currentWeek))

	if err := os.WriteFile(baseFilePath, []byte(strings.Repeat("x", 2048)), 0666); err != nil {
		t.Fatalf("Failed to create initial log file: %v", err)
	}

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, maxFileSize)
	defer func() { _ = rl.Close() }()

	rl.mu.Lock()
	err := rl.doRotate(currentWeek)
	rl.mu.Unlock()
	if err != nil {
		t.Fatalf("Failed to rotate: %v", err)
	}

	if rl.currentFile.Name() == baseFilePath {
		t.Errorf("Expected new numbered file, but got: %s", rl.currentFile.Name())
	}

	if !strings.Contains(rl.currentFile.Name(), "_01.") {
		t.Errorf("Expected filename to contain '_01' suffix, got: %s", rl.currentFile.Name())
	}

	if rl.currentSize.Load() != 0 {
		t.Errorf("Expected currentSize to be 0 for new file, got: %d", rl.currentSize.Load())
	}

	if _, err := rl.Write([]byte("test message")); err != nil {
		t.Fatalf("Failed to write to new file: %v", err)
	}
}

func TestRotatingLoggerExistingFileBelowSizeLimit(t *testing.T) {
	tempDir := t.TempDir()

	maxFileSize := int64(1024)
	currentWeek := getWeekKey(time.Now())
	baseFilePath := filepath.Join(tempDir, fmt.Sprintf("clinic-%s.log", currentWeek))

	if err := os.WriteFile(baseFilePath, []byte(strings.Repeat("x", 512)), 0666); err != nil {
		t.Fatalf("Failed to create initial log file: %v", err)
	}

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, maxFileSize)
	defer func() { _ = rl.Close() }()

	rl.mu.Lock()
	err := rl.doRotate(currentWeek)
	rl.mu.Unlock()
	if err != nil {
		t.Fatalf("Failed to rotate: %v", err)
	}

	if rl.currentFile.Name() != baseFilePath {
		t.Errorf("Expected to reuse existing file, but got: %s", rl.currentFile.Name())
	}

	if rl.currentSize.Load() != 512 {
		t.Errorf("Expected currentSize to be 512 (actual file size), got: %d", rl.currentSize.Load())
	}

	if _, err := rl.Write([]byte("x")); err != nil {
		t.Fatalf("Failed to write to file: %v", err)
	}

	if rl.currentSize.Load() != 513 {
		t.Errorf("Expected currentSize to be 513 after write, got: %d", rl.currentSize.Load())
	}
}
