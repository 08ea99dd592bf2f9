package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/model"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/internal/repository/contract"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

type IConfigService interface {
	Create(ctx context.Context, configType dto.ConfigType, req *dto.CreateConfigRequest) (*dto.CreateConfigResponse, error)
	Get(ctx context.Context, configType dto.ConfigType, configVersion string) (*dto.ConfigDocument, error)
	GetConfigBody(ctx context.Context, configType, configVersion string) ([]byte, error)
	List(ctx context.Context, configType dto.ConfigType) ([]*dto.ConfigDocument, error)
	ResolveOrchestrator(ctx context.Context, configVersion string) (*dto.ResolvedOrchestratorConfig, error)
	SeedFromFile(ctx context.Context, path string) error
}

type configService struct {
	repo     contract.ConfigDocumentRepository
	validate *validator.Validate
	logger   logger.ILogger
}

func NewConfigService(repo contract.ConfigDocumentRepository, log logger.ILogger) IConfigService {
	return &configService{
		repo:     repo,
		validate: validator.New(),
		logger:   log,
	}
}

// generateVersion produces "<type>_YYYYMMDD_uuuuuu" where the suffix is the
// microsecond fraction of the current second.
func generateVersion(configType dto.ConfigType, now time.Time) string {
	return fmt.Sprintf("%s_%s_%06d", configType, now.Format("20060102"), now.Nanosecond()/1000)
}

func (s *configService) Create(ctx context.Context, configType dto.ConfigType, req *dto.CreateConfigRequest) (*dto.CreateConfigResponse, error) {
	if !configType.Valid() {
		return nil, apperror.Newf(apperror.KindValidation, "unknown config type %q", configType)
	}
	if len(req.ConfigBody) == 0 {
		return nil, apperror.New(apperror.KindValidation, "config_body is required")
	}
	if err := s.validateBody(configType, req.ConfigBody); err != nil {
		return nil, err
	}

	version := req.ConfigVersion
	if version == "" {
		version = generateVersion(configType, time.Now())
	}

	doc := &model.ConfigDocument{
		ConfigType:    string(configType),
		ConfigVersion: version,
		ConfigBody:    datatypes.JSON(req.ConfigBody),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("config_service", "config created", map[string]interface{}{
		"config_type":    string(configType),
		"config_version": version,
	})
	return &dto.CreateConfigResponse{ConfigType: configType, ConfigVersion: version}, nil
}

func (s *configService) Get(ctx context.Context, configType dto.ConfigType, configVersion string) (*dto.ConfigDocument, error) {
	if !configType.Valid() {
		return nil, apperror.Newf(apperror.KindValidation, "unknown config type %q", configType)
	}
	row, err := s.repo.FindOne(ctx, string(configType), configVersion)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperror.Newf(apperror.KindNotFound, "config %s/%s not found", configType, configVersion)
	}
	return &dto.ConfigDocument{
		ConfigType:    configType,
		ConfigVersion: row.ConfigVersion,
		ConfigBody:    json.RawMessage(row.ConfigBody),
	}, nil
}

// GetConfigBody satisfies cache.ConfigFetcher.
func (s *configService) GetConfigBody(ctx context.Context, configType, configVersion string) ([]byte, error) {
	doc, err := s.Get(ctx, dto.ConfigType(configType), configVersion)
	if err != nil {
		return nil, err
	}
	return doc.ConfigBody, nil
}

// List returns all documents of a type. Rows that no longer pass validation
// are skipped so one bad row cannot take down the listing.
func (s *configService) List(ctx context.Context, configType dto.ConfigType) ([]*dto.ConfigDocument, error) {
	if !configType.Valid() {
		return nil, apperror.Newf(apperror.KindValidation, "unknown config type %q", configType)
	}
	rows, err := s.repo.FindAllByType(ctx, string(configType))
	if err != nil {
		return nil, err
	}

	docs := make([]*dto.ConfigDocument, 0, len(rows))
	for _, row := range rows {
		if err := s.validateBody(configType, json.RawMessage(row.ConfigBody)); err != nil {
			s.logger.Warn("config_service", "skipping invalid config row", map[string]interface{}{
				"config_type":    string(configType),
				"config_version": row.ConfigVersion,
				"error":          err.Error(),
			})
			continue
		}
		docs = append(docs, &dto.ConfigDocument{
			ConfigType:    configType,
			ConfigVersion: row.ConfigVersion,
			ConfigBody:    json.RawMessage(row.ConfigBody),
		})
	}
	return docs, nil
}

// ResolveOrchestrator dereferences an orchestrator document into a fully
// inlined configuration and cross-validates agent service references.
func (s *configService) ResolveOrchestrator(ctx context.Context, configVersion string) (*dto.ResolvedOrchestratorConfig, error) {
	doc, err := s.Get(ctx, dto.ConfigTypeOrchestrator, configVersion)
	if err != nil {
		return nil, err
	}

	var base dto.OrchestratorConfig
	if err := json.Unmarshal(doc.ConfigBody, &base); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "malformed orchestrator config body", err)
	}

	resolved := &dto.ResolvedOrchestratorConfig{
		BaseConfig:     base,
		AgentConfigs:   make(map[string]dto.AgentConfig, len(base.AgentsConfig)),
		ServiceConfigs: make([]dto.ServiceConfig, 0, len(base.ServicesConfig)),
	}

	if base.SystemConfig != "" {
		sysDoc, err := s.Get(ctx, dto.ConfigTypeSystem, base.SystemConfig)
		if err != nil {
			return nil, err
		}
		var sys dto.SystemConfig
		if err := json.Unmarshal(sysDoc.ConfigBody, &sys); err != nil {
			return nil, apperror.Wrap(apperror.KindValidation, "malformed system config body", err)
		}
		resolved.SystemConfig = &sys
	}

	for agentID, agentVersion := range base.AgentsConfig {
		agentDoc, err := s.Get(ctx, dto.ConfigTypeAgent, agentVersion)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindValidation,
				fmt.Sprintf("agent %q references unresolvable config version %q", agentID, agentVersion), err)
		}
		var agent dto.AgentConfig
		if err := json.Unmarshal(agentDoc.ConfigBody, &agent); err != nil {
			return nil, apperror.Wrap(apperror.KindValidation,
				fmt.Sprintf("malformed agent config %q", agentVersion), err)
		}
		// Agents are re-keyed by their declared name, not the reference id.
		resolved.AgentConfigs[agent.AgentName()] = agent
	}

	for _, serviceVersion := range base.ServicesConfig {
		svcDoc, err := s.Get(ctx, dto.ConfigTypeService, serviceVersion)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindValidation,
				fmt.Sprintf("unresolvable service config version %q", serviceVersion), err)
		}
		var svc dto.ServiceConfig
		if err := json.Unmarshal(svcDoc.ConfigBody, &svc); err != nil {
			return nil, apperror.Wrap(apperror.KindValidation,
				fmt.Sprintf("malformed service config %q", serviceVersion), err)
		}
		resolved.ServiceConfigs = append(resolved.ServiceConfigs, svc)
	}

	if err := resolved.Validate(); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "orchestrator config failed cross-reference validation", err)
	}
	return resolved, nil
}

type seedFile struct {
	Configs []struct {
		ConfigType    string      `yaml:"config_type"`
		ConfigVersion string      `yaml:"config_version"`
		ConfigBody    interface{} `yaml:"config_body"`
	} `yaml:"configs"`
}

// SeedFromFile loads configuration documents from a local YAML file. Existing
// registry rows win: duplicate versions are skipped, not overwritten.
func (s *configService) SeedFromFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return apperror.Wrap(apperror.KindFileProcessing, "cannot read config seed file", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return apperror.Wrap(apperror.KindFileProcessing, "cannot parse config seed file", err)
	}

	for _, entry := range seed.Configs {
		body, err := json.Marshal(normalizeYAML(entry.ConfigBody))
		if err != nil {
			return apperror.Wrap(apperror.KindFileProcessing, "cannot encode seeded config body", err)
		}
		_, err = s.Create(ctx, dto.ConfigType(entry.ConfigType), &dto.CreateConfigRequest{
			ConfigVersion: entry.ConfigVersion,
			ConfigBody:    body,
		})
		if err != nil {
			if apperror.KindOf(err) == apperror.KindConflict {
				s.logger.Debug("config_service", "seed entry already present", map[string]interface{}{
					"config_type":    entry.ConfigType,
					"config_version": entry.ConfigVersion,
				})
				continue
			}
			return err
		}
	}
	return nil
}

// normalizeYAML rewrites map[interface{}]interface{} trees into
// map[string]interface{} so they survive json.Marshal.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return m
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeYAML(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}

func (s *configService) validateBody(configType dto.ConfigType, body json.RawMessage) error {
	var target interface{}
	switch configType {
	case dto.ConfigTypeAgent:
		target = &dto.AgentConfig{}
	case dto.ConfigTypeService:
		target = &dto.ServiceConfig{}
	case dto.ConfigTypeSystem:
		target = &dto.SystemConfig{}
	case dto.ConfigTypeOrchestrator:
		target = &dto.OrchestratorConfig{}
	case dto.ConfigTypeSessionManager:
		target = &dto.SessionManagerConfig{}
	case dto.ConfigTypeEvaluation:
		target = &dto.EvaluationConfig{}
	default:
		return apperror.Newf(apperror.KindValidation, "unknown config type %q", configType)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return apperror.Wrap(apperror.KindValidation, "config body does not match its schema", err)
	}

	switch typed := target.(type) {
	case *dto.AgentConfig:
		var inner interface{}
		if typed.Foundry != nil {
			inner = typed.Foundry
		} else {
			inner = typed.ChatCompletion
		}
		if err := s.validate.Struct(inner); err != nil {
			return apperror.Wrap(apperror.KindValidation, "agent config failed validation", err)
		}
	default:
		if err := s.validate.Struct(target); err != nil {
			return apperror.Wrap(apperror.KindValidation, "config body failed validation", err)
		}
	}
	return nil
}
