package main

import (
	"fmt"
	"os"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runPipeline(os.Args[2:])
	case "predict":
		err = runPredict(os.Args[2:])
	case "features":
		err = runFeatures(os.Args[2:])
	case "publish":
		err = runPublish(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

func printUsage() {
	fmt.Println("Customer spend forecasting CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Ingest daily files, update history, engineer features and train")
	fmt.Println("  predict   Predict a customer's net spend for a date")
	fmt.Println("  features  Show the feature vector for a customer and date")
	fmt.Println("  publish   Upload the trained model and history to a bucket")
	fmt.Println("  serve     Serve predictions over HTTP and queue training runs")
	fmt.Println("  migrate   Create the warehouse metrics table")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}
