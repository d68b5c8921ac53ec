// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "audiobatch")

	viper.SetDefault("log.enabled", false)
	viper.SetDefault("log.path", "audiobatch.log")
	viper.SetDefault("log.rotation", RotationDaily)
	viper.SetDefault("log.maxsize", 1048576)
	viper.SetDefault("log.rotationday", time.Sunday)

	viper.SetDefault("decode.kind", "float32")
	viper.SetDefault("decode.downmix", false)
	viper.SetDefault("decode.samplerate", 0.0)
	viper.SetDefault("decode.quality", 50.0)
	viper.SetDefault("decode.workers", 0)
	viper.SetDefault("decode.formats", []string{})

	viper.SetDefault("output.path", "output/")
	viper.SetDefault("output.type", "wav")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "0.0.0.0:8090")
}
