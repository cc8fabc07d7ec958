package api

import "NuamTributario/internal/serviceiface"

type GatewayService struct {
	config map[string]interface{}
}

func NewGatewayService(cfg map[string]interface{}) serviceiface.Service {
	return &GatewayService{config: cfg}
}

func (s *GatewayService) Name() string {
	return "gateway"
}

func (s *GatewayService) Start() error {
	port := 8081
	switch v := s.config["port"].(type) {
	case int:
		port = v
	case float64:
		port = int(v)
	}
	go StartGateway(port)
	return nil
}

func (s *GatewayService) Stop() error {
	return nil
}
