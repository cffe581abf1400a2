package main

//go:generate swag init -g cmd/api/main.go -o docs

// @title           Arbitrage Signals API
// @version         2.0.0
// @description     Tiered arbitrage signal feeds with crypto subscription billing.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
