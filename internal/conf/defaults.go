// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "AQMS-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "aqms.log")

	viper.SetDefault("ingest.targetrate", 1800)
	viper.SetDefault("ingest.batchsize", 600)
	viper.SetDefault("ingest.maxclockskew", 5*time.Minute)
	viper.SetDefault("ingest.retryattempts", 3)
	viper.SetDefault("ingest.retrybackoff", 500*time.Millisecond)

	viper.SetDefault("detector.interval", 30*time.Second)
	viper.SetDefault("detector.window", 15*time.Minute)
	viper.SetDefault("detector.contamination", 0.05)
	viper.SetDefault("detector.minsamples", 20)
	viper.SetDefault("detector.neighbors", 5)
	viper.SetDefault("detector.cycletimeout", 25*time.Second)

	viper.SetDefault("classifier.interval", 45*time.Second)
	viper.SetDefault("classifier.window", 15*time.Minute)
	viper.SetDefault("classifier.learningrate", 0.05)
	viper.SetDefault("classifier.seed", 42)
	viper.SetDefault("classifier.cycletimeout", 40*time.Second)

	viper.SetDefault("alerting.cooldown", 5*time.Minute)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.listen", ":9090")
	viper.SetDefault("metrics.recordinterval", time.Minute)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "aqms.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "aqms")
	viper.SetDefault("output.mysql.password", "aqms")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "aqms")
}
