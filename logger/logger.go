package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"meterdata-etl/config"
)

var (
	mutexLogging sync.Mutex
	lineCounter  = 0
)

type Impl struct {
	LogFile        *os.File
	FileName       string
	MaxLogfileSize int64
}

type Logger interface {
	Fatal(err error)
	Error(logMessage error)
	ErrorWithText(logMessage string)
	Warn(logMessage string)
	Info(logMessage string)
	Debug(logMessage string)
	replaceLogFile() error
	logFileIsTooLarge() bool

	Close()
}

// NewLogger points logrus at fileName (created or appended to). When the file cannot be opened
// logging continues on stderr and the error is returned.
var NewLogger = func(fileName string, maxLogfileSize int64) (Logger, error) {
	log.SetFormatter(&log.TextFormatter{QuoteEmptyFields: true, FullTimestamp: true})
	log.SetReportCaller(true)
	log.SetLevel(log.InfoLevel)

	if err := os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
		log.SetOutput(os.Stderr)
		return &Impl{FileName: fileName, MaxLogfileSize: maxLogfileSize}, err
	}
	logFile, err := os.OpenFile(fileName, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		// Cannot open log file. Logging to stderr
		fmt.Fprintln(os.Stderr, err)
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(logFile)
	}

	return &Impl{
		LogFile:        logFile,
		FileName:       fileName,
		MaxLogfileSize: maxLogfileSize,
	}, err
}

// write logs one line under the logging lock and archives the file once it has grown too large
func (i *Impl) write(logf func(args ...interface{}), args ...interface{}) {
	mutexLogging.Lock()
	defer mutexLogging.Unlock()

	lineCounter++
	logf(args...)
	if i.logFileIsTooLarge() {
		if err := i.replaceLogFile(); err != nil {
			log.Error(err)
		}
	}
}

func (i *Impl) ErrorWithText(logMessage string) { i.write(log.Error, logMessage) }

func (i *Impl) Error(err error) { i.write(log.Error, err) }

func (i *Impl) Warn(logMessage string) { i.write(log.Warn, logMessage) }

func (i *Impl) Info(logMessage string) { i.write(log.Info, logMessage) }

func (i *Impl) Debug(logMessage string) { i.write(log.Debug, logMessage) }

// Fatal logs err and exits the process
func (i *Impl) Fatal(err error) {
	mutexLogging.Lock()
	defer mutexLogging.Unlock()

	log.Fatal(err)
}

func (i *Impl) replaceLogFile() error {

	log.Info("Archiving existing log file")

	// Replace the log file
	err := i.LogFile.Close()
	if err != nil {
		return err
	}
	extension := filepath.Ext(i.FileName)
	newFileName := strings.TrimSuffix(i.FileName, extension) + "_" + time.Now().Format(config.GetFileDateLayout()) + extension
	err = os.Rename(i.FileName, newFileName)
	if err != nil {
		i.LogFile, err = os.OpenFile(i.FileName, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		return err
	}
	// Create a new file
	i.LogFile, err = os.OpenFile(i.FileName, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return err
	}
	log.SetOutput(i.LogFile)
	return nil
}

func (i *Impl) logFileIsTooLarge() bool {
	if i.LogFile == nil || lineCounter < 100 {
		return false
	}
	lineCounter = 0

	fileInfo, err := os.Stat(i.LogFile.Name())
	if err != nil {
		log.Error("Error:", err)
		return false
	}
	return fileInfo.Size()/(1024*1024) >= i.MaxLogfileSize
}

func (i *Impl) Close() {
	//Don't forget to close the log file
	if i.LogFile != nil {
		i.LogFile.Close()
	}
}
