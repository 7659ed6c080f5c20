package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"meterdata-etl/config"
	"meterdata-etl/models"
	"meterdata-etl/repository"
)

// QuarantineSink receives the measurements that failed enrichment
type QuarantineSink interface {
	Save(ctx context.Context, record models.QuarantinedMeasurement) error
	Close() error
}

type storeSink struct {
	repo repository.QuarantineRepository
}

// NewStoreQuarantineSink saves quarantined measurements in the document store
func NewStoreQuarantineSink(repo repository.QuarantineRepository) QuarantineSink {
	return &storeSink{repo: repo}
}

func (s *storeSink) Save(ctx context.Context, record models.QuarantinedMeasurement) error {
	return s.repo.SaveQuarantined(ctx, record)
}

func (s *storeSink) Close() error {
	return nil
}

// fileSink writes one JSON document per line to a .tmp file that is renamed once the run succeeds
type fileSink struct {
	file    *os.File
	encoder *json.Encoder
}

// NewFileQuarantineSink creates the quarantine file of one worker in folder
func NewFileQuarantineSink(folder, taskId string, worker int) (QuarantineSink, error) {
	fileName := filepath.Join(folder, fmt.Sprintf("%s_%s_%d%s",
		config.GetQuarantineFilePrefix(), taskId, worker, config.GetTmpExtension()))
	file, err := os.Create(fileName)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	return &fileSink{file: file, encoder: json.NewEncoder(file)}, nil
}

func (s *fileSink) Save(_ context.Context, record models.QuarantinedMeasurement) error {
	return s.encoder.Encode(record)
}

func (s *fileSink) Close() error {
	return s.file.Close()
}

type teeSink []QuarantineSink

func (t teeSink) Save(ctx context.Context, record models.QuarantinedMeasurement) error {
	for _, sink := range t {
		if err := sink.Save(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSink) Close() error {
	var firstErr error
	for _, sink := range t {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

//renameFiles changes the extension of the files in the given folder
func renameFiles(folderName string, oldExtension string, newExtension string) ([]string, error) {
	var filenames []string

	files, err := os.ReadDir(folderName)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	//Find all .tmp files
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == oldExtension {
			filename := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
			err := os.Rename(filepath.Join(folderName, file.Name()), filepath.Join(folderName, filename+newExtension))
			if err != nil {
				log.Error(err)
			} else {
				filenames = append(filenames, filename+newExtension)
				log.Debug("Quarantine file created: ", filename+newExtension)
			}
		}
	}
	return filenames, nil
}

//RemoveFiles removes the files with the given extension in the given folder
func RemoveFiles(folderName string, extension string) error {
	files, err := os.ReadDir(folderName)
	if err != nil {
		log.Error(err)
		return err
	}
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == extension {
			err := os.Remove(filepath.Join(folderName, file.Name()))
			if err != nil {
				log.Error(err)
				return err
			}
		}
	}
	return nil
}
