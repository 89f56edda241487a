// Command tools prints a service token for the internal API, signed with INTERNAL_SECRET.
//
//	go run ./cmd/tools -service matching -ttl 24h
package main

import (
	"flag"
	"fmt"
	"log"
	"match-chat/auth"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	InternalSecret string `env:"INTERNAL_SECRET,required=true"`
}

func main() {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	service := flag.String("service", "", "Name of the calling service")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime")
	flag.Parse()
	if *service == "" {
		log.Fatal("-service is required")
	}

	token, err := auth.GenerateToken([]byte(config.InternalSecret), *service, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
