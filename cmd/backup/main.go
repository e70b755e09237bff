package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"challengetracker/internal/config"
	"challengetracker/internal/database"
	"challengetracker/internal/models"
	"challengetracker/internal/repository"
	"challengetracker/internal/service"
	"challengetracker/migrations"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	reportCmd := flag.NewFlagSet("report", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Replace the history ledger instead of merging (WARNING: destructive)")

	// Report flags
	reportOutput := reportCmd.String("output", "", "Output file path (default: Student_Progress_YYYY-MM-DD.xlsx)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()

	slots, err := models.ParseClassSlots(cfg.ClassSlots)
	if err != nil {
		log.Fatalf("Invalid CLASS_SLOTS: %v", err)
	}

	// Initialize database
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	var schema fs.FS = migrations.FS
	if cfg.MigrationsPath != "" {
		schema = os.DirFS(cfg.MigrationsPath)
	}
	if err := db.RunMigrations(schema); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	reconciler := service.NewReconciler(repository.NewStore(db), slots)
	ledger := service.NewHistoryLedger(repository.NewHistoryRepository(db))
	backupService := service.NewBackupService(reconciler, ledger, cfg.DatabaseType)
	ctx := context.Background()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(ctx, backupService, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, backupService, *importInput, *importClear)

	case "report":
		reportCmd.Parse(os.Args[2:])
		handleReport(ctx, ledger, *reportOutput)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(ctx context.Context, backupService *service.BackupService, outputPath string) {
	// Generate default filename if not provided
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("backup_%s.json", timestamp)
	}
	ensureDir(outputPath)

	log.Printf("Exporting database to: %s", outputPath)
	if err := backupService.Export(ctx, outputPath); err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fileInfo, err := os.Stat(outputPath)
	if err == nil {
		log.Printf("Export complete! File size: %.2f MB", float64(fileInfo.Size())/1024/1024)
	}
}

func handleImport(ctx context.Context, backupService *service.BackupService, inputPath string, clearHistory bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		log.Fatalf("Input file does not exist: %s", inputPath)
	}

	if clearHistory {
		fmt.Print("WARNING: This will replace the whole history ledger. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Println("Import cancelled")
			return
		}
	}

	log.Printf("Importing database from: %s", inputPath)
	if err := backupService.Import(ctx, inputPath, clearHistory); err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Println("Import complete!")
}

func handleReport(ctx context.Context, ledger *service.HistoryLedger, outputPath string) {
	if outputPath == "" {
		outputPath = service.MasteryFilename(time.Now())
	}
	ensureDir(outputPath)

	entries, err := ledger.QueryAll(ctx)
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer file.Close()

	matrix := service.BuildMasteryMatrix(entries)
	if err := service.WriteMasteryWorkbook(file, matrix); err != nil {
		log.Fatalf("Report failed: %v", err)
	}
	log.Printf("Report written to %s: %d students, %d themes", outputPath, len(matrix.Students), len(matrix.Themes))
}

func ensureDir(path string) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}
}

func printUsage() {
	fmt.Println("Challenge Tracker Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export state and history to a JSON file")
	fmt.Println("  backup import [options]    Import a JSON backup or a legacy snapshot")
	fmt.Println("  backup report [options]    Write the student mastery matrix as xlsx")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Replace history instead of merging (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Report Options:")
	fmt.Println("  -output <file>    Output file path (default: Student_Progress_YYYY-MM-DD.xlsx)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./challengetracker.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
	fmt.Println("  CLASS_SLOTS      Canonical class slots as id:Label,id:Label")
}
