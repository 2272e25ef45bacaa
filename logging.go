package main

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

var devMode bool

func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
	DebugLog("ERROR [%s]: %v", context, err)
}

// AppLogger provides extended diagnostics logging for the engine.
// Used by both the server and tests.
type AppLogger struct {
	outputDir string
	logDB     bool
	logWS     bool
	debug     bool
	dbLog     *os.File
	wsLog     *os.File
	mu        sync.Mutex
	wsCount   int
}

// Global application logger (used by server)
var appLogger *AppLogger

// LogConfig holds logging configuration
type LogConfig struct {
	OutputDir string
	LogDB     bool
	LogWS     bool
	Debug     bool
}

// NewAppLogger creates a new application logger
func NewAppLogger(config LogConfig) (*AppLogger, error) {
	al := &AppLogger{
		outputDir: config.OutputDir,
		logDB:     config.LogDB,
		logWS:     config.LogWS,
		debug:     config.Debug,
	}

	if al.outputDir == "" {
		return al, nil // No file logging, just in-memory state
	}

	var err error
	if al.logDB {
		path := fmt.Sprintf("%s/database.log", al.outputDir)
		al.dbLog, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open database log: %w", err)
		}
	}
	if al.logWS {
		path := fmt.Sprintf("%s/websocket.log", al.outputDir)
		al.wsLog, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open WebSocket log: %w", err)
		}
	}

	return al, nil
}

func (al *AppLogger) Close() {
	if al == nil {
		return
	}
	if al.dbLog != nil {
		al.dbLog.Close()
	}
	if al.wsLog != nil {
		al.wsLog.Close()
	}
}

// LogWebSocket records one WebSocket message with direction and player.
func (al *AppLogger) LogWebSocket(direction, playerID, message string) {
	if al == nil || !al.logWS || al.wsLog == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	al.wsCount++
	fmt.Fprintf(al.wsLog, "[%s] #%d %s player=%s %s\n",
		time.Now().Format("15:04:05.000"), al.wsCount, direction, playerID, message)
}

// LogDB records a database-related diagnostic line.
func (al *AppLogger) LogDB(context string) {
	if al == nil || !al.logDB || al.dbLog == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	fmt.Fprintf(al.dbLog, "[%s] %s\n", time.Now().Format("15:04:05.000"), context)
}

// Debug emits when the debug flag is on; dev mode forces it on.
func (al *AppLogger) Debug(format string, args ...any) {
	if al == nil || (!al.debug && !devMode) {
		return
	}
	log.Printf("DEBUG: "+format, args...)
}

// DebugLog writes through the global logger when debug is enabled.
func DebugLog(format string, args ...any) {
	if appLogger != nil {
		appLogger.Debug(format, args...)
	}
}
